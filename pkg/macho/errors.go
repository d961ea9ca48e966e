package macho

import "errors"

var (
	// ErrInvalidMagic is returned when the image does not start with a thin Mach-O magic.
	ErrInvalidMagic = errors.New("invalid magic")
	// ErrMalformedLoadCommand is returned when a load command is truncated, mis-sized or inconsistent with the header.
	ErrMalformedLoadCommand = errors.New("malformed load command")
	// ErrOutOfBounds is returned when a read or write falls outside the image.
	ErrOutOfBounds = errors.New("out of bounds")
	// ErrMisaligned is returned when a multi-byte field is written at an unaligned offset.
	ErrMisaligned = errors.New("misaligned write")
	// ErrInsufficientPadding is returned when the load commands cannot grow in place.
	ErrInsufficientPadding = errors.New("insufficient padding for load commands")
	// ErrPathTooLong is returned when a path exceeds the configured maximum length.
	ErrPathTooLong = errors.New("path too long")
	// ErrInvalidPath is returned for empty paths and paths containing NUL bytes.
	ErrInvalidPath = errors.New("invalid path")
	// ErrDuplicateRpath is returned when the LC_RPATH being added already exists.
	ErrDuplicateRpath = errors.New("duplicate LC_RPATH")
	// ErrRpathNotFound is returned when the LC_RPATH being removed or changed does not exist.
	ErrRpathNotFound = errors.New("LC_RPATH not found")
	// ErrRelocationOverflow is returned when a shifted offset no longer fits its field or the file.
	ErrRelocationOverflow = errors.New("relocation overflow")
	// ErrSignatureInvalidated is returned when an edit would invalidate the code signature.
	ErrSignatureInvalidated = errors.New("code signature would be invalidated")
)
