package macho

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/blacktop/go-macho/types"
)

const loadCmdHeaderSize = 8

var (
	segment32Size = uint64(binary.Size(types.Segment32{}))
	segment64Size = uint64(binary.Size(types.Segment64{}))
	rpathSize     = uint64(binary.Size(types.RpathCmd{}))
	dylinkerSize  = uint64(binary.Size(types.DylinkerCmd{}))
)

// A Load represents a Mach-O load command.
//
// The set of implementations is closed: Segment, Symtab, Dysymtab, Dylinker,
// CodeSignature, LinkEditData, DyldInfo, EncryptionInfo, Note, EntryPoint,
// TwolevelHints, FilesetEntry, Rpath, UUID and Unknown.
type Load interface {
	Command() types.LoadCmd
	LoadSize() uint32
	Raw() []byte
	String() string

	encode(f Format) ([]byte, error)
	refs() []*fileRef
	clone() Load
}

// A fileRef is an offset field that addresses bytes after the header.
type fileRef struct {
	name    string
	off     uint64
	size    uint64
	width   int    // size of the offset field in bytes
	align   uint64 // required alignment of the referenced bytes, 0 if none
	segment bool
	set     func(uint64)
}

// LoadBytes holds the exact bytes a load command was parsed from.
type LoadBytes struct {
	cmd types.LoadCmd
	raw []byte
}

func (b LoadBytes) Command() types.LoadCmd { return b.cmd }
func (b LoadBytes) LoadSize() uint32       { return uint32(len(b.raw)) }

// Raw returns the command bytes as parsed. The slice must not be modified.
func (b LoadBytes) Raw() []byte { return b.raw }

func (b LoadBytes) refs() []*fileRef { return nil }

func (b LoadBytes) copyBytes() LoadBytes {
	return LoadBytes{cmd: b.cmd, raw: bytes.Clone(b.raw)}
}

// decode reads the fixed part of the command into the go-macho struct v.
func (b LoadBytes) decode(f Format, v any) error {
	if err := binary.Read(bytes.NewReader(b.raw), f.ByteOrder, v); err != nil {
		return fmt.Errorf("%w: %s cmdsize %d, need %d: %v", ErrMalformedLoadCommand, b.cmd, len(b.raw), binary.Size(v), err)
	}
	return nil
}

// encode writes vs in order over a copy of the raw bytes, keeping any
// trailing payload.
func (b LoadBytes) encodeOver(f Format, vs ...any) ([]byte, error) {
	var hdr bytes.Buffer
	for _, v := range vs {
		if err := binary.Write(&hdr, f.ByteOrder, v); err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", b.cmd, err)
		}
	}
	if hdr.Len() > len(b.raw) {
		return nil, fmt.Errorf("%w: %s encodes to %d bytes but cmdsize is %d", ErrMalformedLoadCommand, b.cmd, hdr.Len(), len(b.raw))
	}
	buf := bytes.Clone(b.raw)
	copy(buf, hdr.Bytes())
	return buf, nil
}

/*******************************************************************************
 * LC_SEGMENT, LC_SEGMENT_64
 *******************************************************************************/

// A Segment represents a Mach-O 32-bit or 64-bit segment load command.
type Segment struct {
	LoadBytes
	Name     string
	Addr     uint64
	Memsz    uint64
	Offset   uint64
	Filesz   uint64
	Maxprot  types.VmProtection
	Prot     types.VmProtection
	Nsect    uint32
	Flag     types.SegFlag
	Sections []*Section
}

func segmentHeaderSize(f Format) uint64 {
	if f.Is64() {
		return segment64Size
	}
	return segment32Size
}

func parseSegment(b LoadBytes, f Format) (*Segment, error) {
	s := &Segment{LoadBytes: b}
	r := bytes.NewReader(b.raw)
	if f.Is64() {
		var hdr types.Segment64
		if err := binary.Read(r, f.ByteOrder, &hdr); err != nil {
			return nil, fmt.Errorf("%w: %s cmdsize %d", ErrMalformedLoadCommand, b.cmd, len(b.raw))
		}
		s.Name = cstring(hdr.Name[:])
		s.Addr, s.Memsz, s.Offset, s.Filesz = hdr.Addr, hdr.Memsz, hdr.Offset, hdr.Filesz
		s.Maxprot, s.Prot, s.Nsect, s.Flag = hdr.Maxprot, hdr.Prot, hdr.Nsect, hdr.Flag
	} else {
		var hdr types.Segment32
		if err := binary.Read(r, f.ByteOrder, &hdr); err != nil {
			return nil, fmt.Errorf("%w: %s cmdsize %d", ErrMalformedLoadCommand, b.cmd, len(b.raw))
		}
		s.Name = cstring(hdr.Name[:])
		s.Addr, s.Memsz, s.Offset, s.Filesz = uint64(hdr.Addr), uint64(hdr.Memsz), uint64(hdr.Offset), uint64(hdr.Filesz)
		s.Maxprot, s.Prot, s.Nsect, s.Flag = hdr.Maxprot, hdr.Prot, hdr.Nsect, hdr.Flag
	}

	if need := segmentHeaderSize(f) + uint64(s.Nsect)*sectionSize(f); need > uint64(len(b.raw)) {
		return nil, fmt.Errorf("%w: segment %s has %d sections but cmdsize %d", ErrMalformedLoadCommand, s.Name, s.Nsect, len(b.raw))
	}
	for range s.Nsect {
		sect, err := readSection(r, f)
		if err != nil {
			return nil, fmt.Errorf("%w: segment %s: %v", ErrMalformedLoadCommand, s.Name, err)
		}
		s.Sections = append(s.Sections, sect)
	}

	return s, nil
}

func (s *Segment) encode(f Format) ([]byte, error) {
	r := bytes.NewReader(s.raw)
	var vs []any
	if f.Is64() {
		var hdr types.Segment64
		if err := binary.Read(r, f.ByteOrder, &hdr); err != nil {
			return nil, err
		}
		hdr.Addr, hdr.Memsz, hdr.Offset, hdr.Filesz = s.Addr, s.Memsz, s.Offset, s.Filesz
		hdr.Maxprot, hdr.Prot, hdr.Flag = s.Maxprot, s.Prot, s.Flag
		vs = append(vs, hdr)
	} else {
		var hdr types.Segment32
		if err := binary.Read(r, f.ByteOrder, &hdr); err != nil {
			return nil, err
		}
		hdr.Addr, hdr.Memsz, hdr.Offset, hdr.Filesz = uint32(s.Addr), uint32(s.Memsz), uint32(s.Offset), uint32(s.Filesz)
		hdr.Maxprot, hdr.Prot, hdr.Flag = s.Maxprot, s.Prot, s.Flag
		vs = append(vs, hdr)
	}
	for _, sect := range s.Sections {
		v, err := sect.header(r, f)
		if err != nil {
			return nil, err
		}
		vs = append(vs, v)
	}
	return s.encodeOver(f, vs...)
}

func (s *Segment) refs() []*fileRef {
	width := 4
	if s.cmd == types.LC_SEGMENT_64 {
		width = 8
	}
	refs := []*fileRef{{
		name:    "segment " + s.Name,
		off:     s.Offset,
		size:    s.Filesz,
		width:   width,
		segment: true,
		set:     func(v uint64) { s.Offset = v },
	}}
	for _, sect := range s.Sections {
		refs = append(refs, sect.refs()...)
	}
	return refs
}

func (s *Segment) clone() Load {
	n := *s
	n.LoadBytes = s.copyBytes()
	n.Sections = make([]*Section, len(s.Sections))
	for i, sect := range s.Sections {
		cp := *sect
		n.Sections[i] = &cp
	}
	return &n
}

// contains reports whether the file range [off, off+size) lies inside the segment.
func (s *Segment) contains(off, size uint64) bool {
	return off >= s.Offset && off+size <= s.Offset+s.Filesz
}

func (s *Segment) String() string {
	return fmt.Sprintf("%s\t%-16s vmaddr=%#x vmsize=%#x fileoff=%#x filesize=%#x %s/%s nsects=%d",
		s.cmd, s.Name, s.Addr, s.Memsz, s.Offset, s.Filesz, s.Prot, s.Maxprot, s.Nsect)
}

/*******************************************************************************
 * LC_SYMTAB
 *******************************************************************************/

// A Symtab represents a Mach-O symbol table command.
type Symtab struct {
	LoadBytes
	types.SymtabCmd

	nlistSize uint64
}

func parseSymtab(b LoadBytes, f Format) (*Symtab, error) {
	s := &Symtab{LoadBytes: b, nlistSize: f.nlistSize()}
	if err := b.decode(f, &s.SymtabCmd); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Symtab) encode(f Format) ([]byte, error) { return s.encodeOver(f, s.SymtabCmd) }

func (s *Symtab) refs() []*fileRef {
	return []*fileRef{
		u32Ref("symbol table", &s.Symoff, uint64(s.Nsyms)*s.nlistSize),
		u32Ref("string table", &s.Stroff, uint64(s.Strsize)),
	}
}

func (s *Symtab) clone() Load {
	n := *s
	n.LoadBytes = s.copyBytes()
	return &n
}

func (s *Symtab) String() string {
	return fmt.Sprintf("%s\tsymoff=%#x nsyms=%d stroff=%#x strsize=%#x", s.cmd, s.Symoff, s.Nsyms, s.Stroff, s.Strsize)
}

/*******************************************************************************
 * LC_DYSYMTAB
 *******************************************************************************/

// A Dysymtab represents a Mach-O dynamic symbol table command.
type Dysymtab struct {
	LoadBytes
	types.DysymtabCmd

	modtabSize uint64
}

func parseDysymtab(b LoadBytes, f Format) (*Dysymtab, error) {
	d := &Dysymtab{LoadBytes: b, modtabSize: uint64(binary.Size(types.DylibModule{}))}
	if f.Is64() {
		d.modtabSize = uint64(binary.Size(types.DylibModule64{}))
	}
	if err := b.decode(f, &d.DysymtabCmd); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Dysymtab) encode(f Format) ([]byte, error) { return d.encodeOver(f, d.DysymtabCmd) }

func (d *Dysymtab) refs() []*fileRef {
	return []*fileRef{
		u32Ref("table of contents", &d.Tocoffset, uint64(d.Ntoc)*uint64(binary.Size(types.DylibTableOfContents{}))),
		u32Ref("module table", &d.Modtaboff, uint64(d.Nmodtab)*d.modtabSize),
		u32Ref("external references", &d.Extrefsymoff, uint64(d.Nextrefsyms)*4),
		u32Ref("indirect symbols", &d.Indirectsymoff, uint64(d.Nindirectsyms)*4),
		u32Ref("external relocations", &d.Extreloff, uint64(d.Nextrel)*relocSize),
		u32Ref("local relocations", &d.Locreloff, uint64(d.Nlocrel)*relocSize),
	}
}

func (d *Dysymtab) clone() Load {
	n := *d
	n.LoadBytes = d.copyBytes()
	return &n
}

func (d *Dysymtab) String() string {
	return fmt.Sprintf("%s\tindirectsymoff=%#x nindirectsyms=%d extreloff=%#x nextrel=%d locreloff=%#x nlocrel=%d",
		d.cmd, d.Indirectsymoff, d.Nindirectsyms, d.Extreloff, d.Nextrel, d.Locreloff, d.Nlocrel)
}

/*******************************************************************************
 * LC_CODE_SIGNATURE and other linkedit_data_command
 *******************************************************************************/

// A LinkEditData represents a load command pointing at a blob in __LINKEDIT.
type LinkEditData struct {
	LoadBytes
	types.LinkEditDataCmd
}

func parseLinkEditData(b LoadBytes, f Format) (*LinkEditData, error) {
	l := &LinkEditData{LoadBytes: b}
	if err := b.decode(f, &l.LinkEditDataCmd); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *LinkEditData) encode(f Format) ([]byte, error) { return l.encodeOver(f, l.LinkEditDataCmd) }

func (l *LinkEditData) refs() []*fileRef {
	return []*fileRef{u32Ref(l.cmd.String(), &l.Offset, uint64(l.Size))}
}

func (l *LinkEditData) clone() Load {
	n := *l
	n.LoadBytes = l.copyBytes()
	return &n
}

func (l *LinkEditData) String() string {
	return fmt.Sprintf("%s\toffset=%#x size=%#x", l.cmd, l.Offset, l.Size)
}

// A CodeSignature represents a Mach-O LC_CODE_SIGNATURE command.
type CodeSignature struct {
	LinkEditData
}

func (s *CodeSignature) clone() Load {
	n := *s
	n.LoadBytes = s.copyBytes()
	return &n
}

// end returns the file offset one past the signature blob.
func (s *CodeSignature) end() uint64 { return uint64(s.Offset) + uint64(s.Size) }

/*******************************************************************************
 * LC_DYLD_INFO, LC_DYLD_INFO_ONLY
 *******************************************************************************/

// A DyldInfo represents a Mach-O compressed dyld information command.
type DyldInfo struct {
	LoadBytes
	types.DyldInfoCmd
}

func parseDyldInfo(b LoadBytes, f Format) (*DyldInfo, error) {
	d := &DyldInfo{LoadBytes: b}
	if err := b.decode(f, &d.DyldInfoCmd); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DyldInfo) encode(f Format) ([]byte, error) { return d.encodeOver(f, d.DyldInfoCmd) }

func (d *DyldInfo) refs() []*fileRef {
	return []*fileRef{
		u32Ref("rebase info", &d.RebaseOff, uint64(d.RebaseSize)),
		u32Ref("bind info", &d.BindOff, uint64(d.BindSize)),
		u32Ref("weak bind info", &d.WeakBindOff, uint64(d.WeakBindSize)),
		u32Ref("lazy bind info", &d.LazyBindOff, uint64(d.LazyBindSize)),
		u32Ref("export info", &d.ExportOff, uint64(d.ExportSize)),
	}
}

func (d *DyldInfo) clone() Load {
	n := *d
	n.LoadBytes = d.copyBytes()
	return &n
}

func (d *DyldInfo) String() string {
	return fmt.Sprintf("%s\trebase=%#x bind=%#x weak_bind=%#x lazy_bind=%#x export=%#x",
		d.cmd, d.RebaseOff, d.BindOff, d.WeakBindOff, d.LazyBindOff, d.ExportOff)
}

/*******************************************************************************
 * LC_ENCRYPTION_INFO, LC_ENCRYPTION_INFO_64
 *******************************************************************************/

// An EncryptionInfo represents the encrypted range of a Mach-O image. The
// padding word of LC_ENCRYPTION_INFO_64 is kept in the raw bytes.
type EncryptionInfo struct {
	LoadBytes
	types.EncryptionInfoCmd
}

func parseEncryptionInfo(b LoadBytes, f Format) (*EncryptionInfo, error) {
	if b.cmd == types.LC_ENCRYPTION_INFO_64 {
		if need := binary.Size(types.EncryptionInfo64Cmd{}); len(b.raw) < need {
			return nil, fmt.Errorf("%w: %s cmdsize %d, need %d", ErrMalformedLoadCommand, b.cmd, len(b.raw), need)
		}
	}
	e := &EncryptionInfo{LoadBytes: b}
	if err := b.decode(f, &e.EncryptionInfoCmd); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *EncryptionInfo) encode(f Format) ([]byte, error) { return e.encodeOver(f, e.EncryptionInfoCmd) }

func (e *EncryptionInfo) refs() []*fileRef {
	return []*fileRef{u32Ref("encrypted range", &e.Offset, uint64(e.Size))}
}

func (e *EncryptionInfo) clone() Load {
	n := *e
	n.LoadBytes = e.copyBytes()
	return &n
}

func (e *EncryptionInfo) String() string {
	return fmt.Sprintf("%s\tcryptoff=%#x cryptsize=%#x cryptid=%d", e.cmd, e.Offset, e.Size, e.CryptID)
}

/*******************************************************************************
 * LC_NOTE
 *******************************************************************************/

// A Note represents an LC_NOTE command.
type Note struct {
	LoadBytes
	types.NoteCmd
}

func parseNote(b LoadBytes, f Format) (*Note, error) {
	n := &Note{LoadBytes: b}
	if err := b.decode(f, &n.NoteCmd); err != nil {
		return nil, err
	}
	return n, nil
}

// Owner returns the data owner name of the note.
func (n *Note) Owner() string { return cstring(n.DataOwner[:]) }

func (n *Note) encode(f Format) ([]byte, error) { return n.encodeOver(f, n.NoteCmd) }

func (n *Note) refs() []*fileRef {
	return []*fileRef{u64Ref("note "+n.Owner(), &n.Offset, n.Size)}
}

func (n *Note) clone() Load {
	cp := *n
	cp.LoadBytes = n.copyBytes()
	return &cp
}

func (n *Note) String() string {
	return fmt.Sprintf("%s\t%s offset=%#x size=%#x", n.cmd, n.Owner(), n.Offset, n.Size)
}

/*******************************************************************************
 * LC_MAIN
 *******************************************************************************/

// An EntryPoint represents an LC_MAIN command. EntryOffset is the file offset
// of main() inside __TEXT.
type EntryPoint struct {
	LoadBytes
	types.EntryPointCmd
}

func parseEntryPoint(b LoadBytes, f Format) (*EntryPoint, error) {
	e := &EntryPoint{LoadBytes: b}
	if err := b.decode(f, &e.EntryPointCmd); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *EntryPoint) encode(f Format) ([]byte, error) { return e.encodeOver(f, e.EntryPointCmd) }

// refs reports the entry point with no size: it addresses an instruction
// inside __text, not a range of its own.
func (e *EntryPoint) refs() []*fileRef {
	return []*fileRef{u64Ref("entry point", &e.EntryOffset, 0)}
}

func (e *EntryPoint) clone() Load {
	n := *e
	n.LoadBytes = e.copyBytes()
	return &n
}

func (e *EntryPoint) String() string {
	return fmt.Sprintf("%s\tentryoff=%#x stacksize=%#x", e.cmd, e.EntryOffset, e.StackSize)
}

/*******************************************************************************
 * LC_TWOLEVEL_HINTS
 *******************************************************************************/

// A TwolevelHints represents an LC_TWOLEVEL_HINTS command.
type TwolevelHints struct {
	LoadBytes
	types.TwolevelHintsCmd
}

func parseTwolevelHints(b LoadBytes, f Format) (*TwolevelHints, error) {
	h := &TwolevelHints{LoadBytes: b}
	if err := b.decode(f, &h.TwolevelHintsCmd); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *TwolevelHints) encode(f Format) ([]byte, error) { return h.encodeOver(f, h.TwolevelHintsCmd) }

func (h *TwolevelHints) refs() []*fileRef {
	return []*fileRef{u32Ref("two-level hints", &h.Offset, uint64(h.NumHints)*uint64(binary.Size(types.TwolevelHint(0))))}
}

func (h *TwolevelHints) clone() Load {
	n := *h
	n.LoadBytes = h.copyBytes()
	return &n
}

func (h *TwolevelHints) String() string {
	return fmt.Sprintf("%s\toffset=%#x nhints=%d", h.cmd, h.Offset, h.NumHints)
}

/*******************************************************************************
 * LC_FILESET_ENTRY
 *******************************************************************************/

// A FilesetEntry represents an LC_FILESET_ENTRY command of a kernel collection.
type FilesetEntry struct {
	LoadBytes
	types.FilesetEntryCmd
	EntryID string
}

func parseFilesetEntry(b LoadBytes, f Format) (*FilesetEntry, error) {
	e := &FilesetEntry{LoadBytes: b}
	if err := b.decode(f, &e.FilesetEntryCmd); err != nil {
		return nil, err
	}
	id, err := readLcStr(b, f, e.EntryIdOffset, uint64(binary.Size(e.FilesetEntryCmd)))
	if err != nil {
		return nil, err
	}
	e.EntryID = id
	return e, nil
}

func (e *FilesetEntry) encode(f Format) ([]byte, error) { return e.encodeOver(f, e.FilesetEntryCmd) }

// refs reports the entry with no size: the embedded image carries its own
// load commands and is not parsed here.
func (e *FilesetEntry) refs() []*fileRef {
	return []*fileRef{u64Ref("fileset entry "+e.EntryID, &e.FileOffset, 0)}
}

func (e *FilesetEntry) clone() Load {
	n := *e
	n.LoadBytes = e.copyBytes()
	return &n
}

func (e *FilesetEntry) String() string {
	return fmt.Sprintf("%s\t%s vmaddr=%#x fileoff=%#x", e.cmd, e.EntryID, e.Addr, e.FileOffset)
}

/*******************************************************************************
 * LC_RPATH
 *******************************************************************************/

// An Rpath represents a Mach-O LC_RPATH command.
type Rpath struct {
	LoadBytes
	types.RpathCmd
	Path string
}

// NewRpath builds an LC_RPATH command for path, padded to the word size of f.
func NewRpath(path string, f Format) *Rpath {
	size := alignUp(rpathSize+uint64(len(path))+1, uint64(f.WordSize))
	r := &Rpath{
		RpathCmd: types.RpathCmd{LoadCmd: types.LC_RPATH, Len: uint32(size), PathOffset: uint32(rpathSize)},
		Path:     path,
	}
	var buf bytes.Buffer
	binary.Write(&buf, f.ByteOrder, r.RpathCmd)
	buf.WriteString(path)
	r.LoadBytes = LoadBytes{cmd: types.LC_RPATH, raw: append(buf.Bytes(), make([]byte, size-uint64(buf.Len()))...)}
	return r
}

func parseRpath(b LoadBytes, f Format) (*Rpath, error) {
	r := &Rpath{LoadBytes: b}
	if err := b.decode(f, &r.RpathCmd); err != nil {
		return nil, err
	}
	path, err := readLcStr(b, f, r.PathOffset, rpathSize)
	if err != nil {
		return nil, err
	}
	r.Path = path
	return r, nil
}

func (r *Rpath) encode(Format) ([]byte, error) { return bytes.Clone(r.raw), nil }

func (r *Rpath) clone() Load {
	n := *r
	n.LoadBytes = r.copyBytes()
	return &n
}

func (r *Rpath) String() string {
	return fmt.Sprintf("%s\t%s", r.cmd, r.Path)
}

/*******************************************************************************
 * LC_LOAD_DYLINKER, LC_ID_DYLINKER, LC_DYLD_ENVIRONMENT
 *******************************************************************************/

// A Dylinker represents a load command carrying the path of the dynamic linker.
type Dylinker struct {
	LoadBytes
	types.DylinkerCmd
	Name string
}

func parseDylinker(b LoadBytes, f Format) (*Dylinker, error) {
	d := &Dylinker{LoadBytes: b}
	if err := b.decode(f, &d.DylinkerCmd); err != nil {
		return nil, err
	}
	name, err := readLcStr(b, f, d.NameOffset, dylinkerSize)
	if err != nil {
		return nil, err
	}
	d.Name = name
	return d, nil
}

func (d *Dylinker) encode(Format) ([]byte, error) { return bytes.Clone(d.raw), nil }

func (d *Dylinker) clone() Load {
	n := *d
	n.LoadBytes = d.copyBytes()
	return &n
}

func (d *Dylinker) String() string {
	return fmt.Sprintf("%s\t%s", d.cmd, d.Name)
}

/*******************************************************************************
 * LC_UUID
 *******************************************************************************/

// A UUID represents a Mach-O LC_UUID command.
type UUID struct {
	LoadBytes
	types.UUIDCmd
}

func parseUUID(b LoadBytes, f Format) (*UUID, error) {
	u := &UUID{LoadBytes: b}
	if err := b.decode(f, &u.UUIDCmd); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *UUID) encode(Format) ([]byte, error) { return bytes.Clone(u.raw), nil }

func (u *UUID) clone() Load {
	n := *u
	n.LoadBytes = u.copyBytes()
	return &n
}

func (u *UUID) String() string {
	return fmt.Sprintf("%s\t%s", u.cmd, u.UUID)
}

/*******************************************************************************
 * everything else
 *******************************************************************************/

// An Unknown is a load command kept as opaque bytes.
type Unknown struct {
	LoadBytes
}

func (u *Unknown) encode(Format) ([]byte, error) { return bytes.Clone(u.raw), nil }

func (u *Unknown) clone() Load {
	return &Unknown{LoadBytes: u.copyBytes()}
}

func (u *Unknown) String() string {
	name := u.cmd.String()
	if strings.TrimLeft(name, "0123456789") == "" {
		name = fmt.Sprintf("LC_%#x", uint32(u.cmd))
	}
	return fmt.Sprintf("%s\tsize=%d", name, len(u.raw))
}

// opaqueFileOffsets lists commands that carry file offsets in a layout this
// package does not decode. Content after the load commands cannot move while
// one of them is present.
var opaqueFileOffsets = map[types.LoadCmd]bool{
	types.LC_PREPAGE: true,
}

// parseLoad decodes one load command into its variant.
func parseLoad(b LoadBytes, f Format) (Load, error) {
	switch b.cmd {
	case types.LC_SEGMENT, types.LC_SEGMENT_64:
		if (b.cmd == types.LC_SEGMENT_64) != f.Is64() {
			return nil, fmt.Errorf("%w: %s in a %s image", ErrMalformedLoadCommand, b.cmd, f)
		}
		return parseSegment(b, f)
	case types.LC_SYMTAB:
		return parseSymtab(b, f)
	case types.LC_DYSYMTAB:
		return parseDysymtab(b, f)
	case types.LC_CODE_SIGNATURE:
		l, err := parseLinkEditData(b, f)
		if err != nil {
			return nil, err
		}
		return &CodeSignature{LinkEditData: *l}, nil
	case types.LC_SYMSEG,
		types.LC_FUNCTION_STARTS,
		types.LC_DATA_IN_CODE,
		types.LC_SEGMENT_SPLIT_INFO,
		types.LC_DYLIB_CODE_SIGN_DRS,
		types.LC_LINKER_OPTIMIZATION_HINT,
		types.LC_DYLD_EXPORTS_TRIE,
		types.LC_DYLD_CHAINED_FIXUPS,
		types.LC_ATOM_INFO,
		types.LC_FUNCTION_VARIANTS,
		types.LC_FUNCTION_VARIANT_FIXUPS,
		types.LC_SEP_CACHE_SLIDE,
		types.LC_SEP_UNKNOWN_2,
		types.LC_SEP_UNKNOWN_3:
		return parseLinkEditData(b, f)
	case types.LC_DYLD_INFO, types.LC_DYLD_INFO_ONLY:
		return parseDyldInfo(b, f)
	case types.LC_ENCRYPTION_INFO, types.LC_ENCRYPTION_INFO_64:
		return parseEncryptionInfo(b, f)
	case types.LC_NOTE:
		return parseNote(b, f)
	case types.LC_MAIN:
		return parseEntryPoint(b, f)
	case types.LC_TWOLEVEL_HINTS:
		return parseTwolevelHints(b, f)
	case types.LC_FILESET_ENTRY:
		return parseFilesetEntry(b, f)
	case types.LC_RPATH:
		return parseRpath(b, f)
	case types.LC_LOAD_DYLINKER, types.LC_ID_DYLINKER, types.LC_DYLD_ENVIRONMENT:
		return parseDylinker(b, f)
	case types.LC_UUID:
		return parseUUID(b, f)
	default:
		return &Unknown{LoadBytes: b}, nil
	}
}

// readLcStr reads the lc_str at offset off of a command whose fixed part is
// fixed bytes long.
func readLcStr(b LoadBytes, f Format, off uint32, fixed uint64) (string, error) {
	c := NewCursor(b.raw, f.ByteOrder, f.WordSize)
	if uint64(off) < fixed || uint64(off) >= c.Len() {
		return "", fmt.Errorf("%w: %s string offset %#x outside cmdsize %d", ErrMalformedLoadCommand, b.cmd, off, c.Len())
	}
	s, err := c.ReadCString(uint64(off), c.Len())
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrMalformedLoadCommand, b.cmd, err)
	}
	return s, nil
}

func u32Ref(name string, field *uint32, size uint64) *fileRef {
	return &fileRef{
		name:  name,
		off:   uint64(*field),
		size:  size,
		width: 4,
		set:   func(v uint64) { *field = uint32(v) },
	}
}

func u64Ref(name string, field *uint64, size uint64) *fileRef {
	return &fileRef{
		name:  name,
		off:   *field,
		size:  size,
		width: 8,
		set:   func(v uint64) { *field = v },
	}
}
