// Package devicetree decodes a Flattened Device Tree (FDT) blob into a
// navigable tree of nodes, each carrying an ordered set of string-keyed
// byte-valued properties. This is the only mechanism by which the kernel
// learns what RAM exists and which ranges firmware has already claimed, so
// decoding happens once, very early, and never allocates from the page
// allocator (which does not exist yet).
package devicetree

import (
	"aarch64kernel/kernel"
	"aarch64kernel/kernel/devicetree/scanner"
)

// specVersion is the highest FDT structure version this decoder understands.
const specVersion = 17

const (
	tokenBeginNode = 0x1
	tokenEndNode   = 0x2
	tokenProp      = 0x3
	tokenNop       = 0x4
	tokenEnd       = 0x9
)

var (
	errBadMagic       = &kernel.Error{Module: "devicetree", Message: "incorrect FDT magic value"}
	errBadVersion     = &kernel.Error{Module: "devicetree", Message: "FDT version is too new and not supported"}
	errTruncated      = &kernel.Error{Module: "devicetree", Message: "FDT size exceeds the supplied buffer"}
	errUnbalanced     = &kernel.Error{Module: "devicetree", Message: "unmatched end of node token"}
	errUnfinished     = &kernel.Error{Module: "devicetree", Message: "FDT contains unfinished nodes"}
	errNoRoot         = &kernel.Error{Module: "devicetree", Message: "FDT doesn't have a root node"}
	errUnknownToken   = &kernel.Error{Module: "devicetree", Message: "unknown FDT structure token"}
	errNoRegProperty  = &kernel.Error{Module: "devicetree", Message: "node has no reg property"}
	errMalformedProp  = &kernel.Error{Module: "devicetree", Message: "malformed reg property for the active cell count"}
	errUnsupportedBig = &kernel.Error{Module: "devicetree", Message: "unsupported cell count"}
)

// ReservedMemory is a single entry of the FDT memory-reservation block.
type ReservedMemory struct {
	Address uint64
	Size    uint64
}

// Node is a single device-tree node: an ordered set of properties and an
// ordered set of children, both keyed by name.
type Node struct {
	propNames  []string
	propValues map[string][]byte
	childNames []string
	children   map[string]*Node
}

func newNode() *Node {
	return &Node{
		propValues: make(map[string][]byte),
		children:   make(map[string]*Node),
	}
}

func (n *Node) addProperty(name string, value []byte) {
	if _, exists := n.propValues[name]; !exists {
		n.propNames = append(n.propNames, name)
	}
	n.propValues[name] = value
}

func (n *Node) addChild(name string, child *Node) {
	if _, exists := n.children[name]; !exists {
		n.childNames = append(n.childNames, name)
	}
	n.children[name] = child
}

// Property returns the raw byte value of a property and whether it exists.
func (n *Node) Property(name string) ([]byte, bool) {
	v, ok := n.propValues[name]
	return v, ok
}

// PropString interprets a property as a NUL-terminated string, stripping the
// trailing NUL if present.
func (n *Node) PropString(name string) (string, bool) {
	v, ok := n.Property(name)
	if !ok {
		return "", false
	}
	if l := len(v); l > 0 && v[l-1] == 0 {
		v = v[:l-1]
	}
	return string(v), true
}

// PropU32 interprets a property as a single big-endian 32-bit cell.
func (n *Node) PropU32(name string) (uint32, bool) {
	v, ok := n.Property(name)
	if !ok || len(v) != 4 {
		return 0, false
	}
	return uint32(v[0])<<24 | uint32(v[1])<<16 | uint32(v[2])<<8 | uint32(v[3]), true
}

// PropBytes returns the raw property value, or nil if absent.
func (n *Node) PropBytes(name string) ([]byte, bool) {
	return n.Property(name)
}

// Children returns the node's direct children in structure-block order.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.childNames))
	for i, name := range n.childNames {
		out[i] = n.children[name]
	}
	return out
}

// ChildNames returns the unit-names of the node's direct children, in
// structure-block order.
func (n *Node) ChildNames() []string {
	out := make([]string, len(n.childNames))
	copy(out, n.childNames)
	return out
}

// Child looks up a direct child by unit-name.
func (n *Node) Child(name string) (*Node, bool) {
	c, ok := n.children[name]
	return c, ok
}

// AddressSizeCells returns the node's own #address-cells/#size-cells
// properties, defaulting to 2/1 per the FDT convention when absent.
func (n *Node) AddressSizeCells() (addressCells, sizeCells uint32) {
	addressCells, sizeCells = 2, 1
	if v, ok := n.PropU32("#address-cells"); ok {
		addressCells = v
	}
	if v, ok := n.PropU32("#size-cells"); ok {
		sizeCells = v
	}
	return
}

// RegEntry is a single (address, size) pair decoded from a "reg" property
// per an enclosing node's cell counts.
type RegEntry struct {
	Address uint64
	Size    uint64
}

// DecodeReg interprets a node's "reg" property as a flat array of (address,
// size) pairs sized per addressCells/sizeCells (each inherited from the
// nearest ancestor that declares #address-cells/#size-cells; see
// AddressSizeCells). Fails if either cell count is unsupported or the
// property length isn't a multiple of the resulting entry size.
func (n *Node) DecodeReg(addressCells, sizeCells uint32) ([]RegEntry, *kernel.Error) {
	if addressCells > 2 || sizeCells > 2 {
		return nil, errUnsupportedBig
	}

	raw, ok := n.PropBytes("reg")
	if !ok {
		return nil, errNoRegProperty
	}

	entrySize := int(addressCells+sizeCells) * 4
	if entrySize == 0 || len(raw)%entrySize != 0 {
		return nil, errMalformedProp
	}

	s := scanner.New(raw)
	var out []RegEntry
	for s.Remains() > 0 {
		addr, err := s.ConsumeAddress(addressCells)
		if err != nil {
			return nil, err
		}
		size, err := s.ConsumeSize(sizeCells)
		if err != nil {
			return nil, err
		}
		out = append(out, RegEntry{Address: addr, Size: size})
	}
	return out, nil
}

// Tree is a decoded device tree: the root node plus the header fields and
// reserved-memory entries that accompany it.
type Tree struct {
	Root            *Node
	LastCompVersion uint32
	BootCPUIDPhys   uint32
	reservedMemory  []ReservedMemory
}

// ReservedMemory returns the parsed memory-reservation block, in file order.
func (t *Tree) ReservedMemory() []ReservedMemory {
	return t.reservedMemory
}

// Follow resolves a slash-separated absolute path ("/", "/a/b") against the
// tree's root, returning the node and whether the path fully resolved. An
// empty path or one with a trailing slash other than "/" itself fails.
func (t *Tree) Follow(path string) (*Node, bool) {
	if path == "" {
		return nil, false
	}
	if path[0] != '/' {
		return nil, false
	}
	if path == "/" {
		return t.Root, true
	}
	if path[len(path)-1] == '/' {
		return nil, false
	}

	cur := t.Root
	start := 1
	for i := 1; i <= len(path); i++ {
		if i < len(path) && path[i] != '/' {
			continue
		}
		segment := path[start:i]
		if segment == "" {
			return nil, false
		}
		next, ok := cur.Child(segment)
		if !ok {
			return nil, false
		}
		cur = next
		start = i + 1
	}
	return cur, true
}

type fdtHeader struct {
	magic           uint32
	totalSize       uint32
	offStruct       uint32
	offStrings      uint32
	offMemRsvmap    uint32
	version         uint32
	lastCompVersion uint32
	bootCPUIDPhys   uint32
	sizeDtStrings   uint32
	sizeDtStruct    uint32
}

// Parse decodes an FDT blob into a Tree. The returned Tree borrows data; the
// caller must keep it alive and unmodified for the Tree's lifetime.
func Parse(data []byte) (*Tree, *kernel.Error) {
	header, err := parseHeader(data)
	if err != nil {
		return nil, err
	}

	if header.magic != 0xD00DFEED {
		return nil, errBadMagic
	}
	if header.lastCompVersion > specVersion {
		return nil, errBadVersion
	}
	if uint64(header.totalSize) > uint64(len(data)) {
		return nil, errTruncated
	}

	reserved, err := parseReservations(data[header.offMemRsvmap:])
	if err != nil {
		return nil, err
	}

	structBegin := header.offStruct
	structEnd := structBegin + header.sizeDtStruct
	stringsBegin := header.offStrings
	stringsEnd := stringsBegin + header.sizeDtStrings

	root, err := parseStructure(data[structBegin:structEnd], data[stringsBegin:stringsEnd])
	if err != nil {
		return nil, err
	}

	return &Tree{
		Root:            root,
		LastCompVersion: header.lastCompVersion,
		BootCPUIDPhys:   header.bootCPUIDPhys,
		reservedMemory:  reserved,
	}, nil
}

func parseHeader(data []byte) (fdtHeader, *kernel.Error) {
	s := scanner.New(data)
	var h fdtHeader
	var err *kernel.Error

	fields := []*uint32{
		&h.magic, &h.totalSize, &h.offStruct, &h.offStrings, &h.offMemRsvmap,
		&h.version, &h.lastCompVersion, &h.bootCPUIDPhys, &h.sizeDtStrings, &h.sizeDtStruct,
	}
	for _, f := range fields {
		*f, err = s.ConsumeBe32()
		if err != nil {
			return fdtHeader{}, err
		}
	}
	return h, nil
}

func parseReservations(data []byte) ([]ReservedMemory, *kernel.Error) {
	s := scanner.New(data)
	var out []ReservedMemory

	for {
		addr, err := s.ConsumeBe64()
		if err != nil {
			return nil, err
		}
		size, err := s.ConsumeBe64()
		if err != nil {
			return nil, err
		}
		if addr == 0 && size == 0 {
			return out, nil
		}
		out = append(out, ReservedMemory{Address: addr, Size: size})
	}
}

// parserState tracks the stack of (name, partially-built parent) pairs while
// walking the structure block, mirroring the shape of the token stream
// itself: BEGIN_NODE pushes, END_NODE pops and attaches.
type parserState struct {
	names   []string
	parents []*Node
	current *Node
}

func (p *parserState) beginNode(name string) {
	p.names = append(p.names, name)
	p.parents = append(p.parents, p.current)
	p.current = newNode()
}

func (p *parserState) endNode() *kernel.Error {
	if len(p.parents) == 0 {
		return errUnbalanced
	}

	name := p.names[len(p.names)-1]
	p.names = p.names[:len(p.names)-1]

	parent := p.parents[len(p.parents)-1]
	p.parents = p.parents[:len(p.parents)-1]

	finished := p.current
	p.current = parent
	p.current.addChild(name, finished)
	return nil
}

func (p *parserState) finish() (*Node, *kernel.Error) {
	if len(p.parents) != 0 {
		return nil, errUnfinished
	}
	if len(p.current.childNames) != 1 {
		return nil, errNoRoot
	}
	return p.current.children[p.current.childNames[0]], nil
}

func parseStructure(structs, strings []byte) (*Node, *kernel.Error) {
	s := scanner.New(structs)
	state := &parserState{current: newNode()}

	for {
		token, err := s.ConsumeBe32()
		if err != nil {
			return nil, err
		}

		switch token {
		case tokenBeginNode:
			name, err := s.ConsumeCstr()
			if err != nil {
				return nil, err
			}
			if err := s.AlignForward(4); err != nil {
				return nil, err
			}
			state.beginNode(name)

		case tokenEndNode:
			if err := state.endNode(); err != nil {
				return nil, err
			}

		case tokenProp:
			length, err := s.ConsumeBe32()
			if err != nil {
				return nil, err
			}
			off, err := s.ConsumeBe32()
			if err != nil {
				return nil, err
			}
			value, err := s.ConsumeData(int(length))
			if err != nil {
				return nil, err
			}
			if int(off) > len(strings) {
				return nil, errTruncated
			}
			name, err := scanner.New(strings[off:]).ConsumeCstr()
			if err != nil {
				return nil, err
			}
			if err := s.AlignForward(4); err != nil {
				return nil, err
			}
			state.current.addProperty(name, value)

		case tokenNop:
			// no-op token, nothing to do.

		case tokenEnd:
			return state.finish()

		default:
			return nil, errUnknownToken
		}
	}
}
