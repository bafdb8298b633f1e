package symbols

import (
	"debug/dwarf"
	"debug/elf"
	"io"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/go-deet/deet/pkg/logflags"
)

// DefaultEntryFunction is the function where program execution starts for
// C-like targets.
const DefaultEntryFunction = "main"

const lookupCacheSize = 1024

// lineRow is a row of the DWARF line number program.
type lineRow struct {
	Addr        uint64
	File        string
	Line        int
	IsStmt      bool
	PrologueEnd bool
	EndSeq      bool
}

// lookup is the cached result of resolving an address.
type lookup struct {
	fn    string
	fnOK  bool
	loc   Location
	locOK bool
}

// BinaryInfo holds information on the binary being executed.
type BinaryInfo struct {
	// Path on disk of the binary being executed.
	Path string
	// EntryFunction is the function unwinding stops at.
	EntryFunction string

	// Functions is a list of all functions, sorted by entry point.
	Functions []Function

	lines       []lineRow
	funcByName  map[string]*Function
	defaultFile string

	cache *lru.Cache
	log   *logrus.Entry
}

var _ Resolver = (*BinaryInfo)(nil)

func newBinaryInfo(path, entry string) *BinaryInfo {
	if entry == "" {
		entry = DefaultEntryFunction
	}
	cache, _ := lru.New(lookupCacheSize)
	return &BinaryInfo{
		Path:          path,
		EntryFunction: entry,
		funcByName:    make(map[string]*Function),
		cache:         cache,
		log:           logflags.SymbolsLogger(),
	}
}

// Load reads the DWARF information of the executable at path. entry is the
// name of the function where execution of the program starts; an empty
// string means DefaultEntryFunction.
func Load(path, entry string) (*BinaryInfo, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, &ErrNoDebugInfo{Path: path, Err: err}
	}
	defer f.Close()

	data, err := f.DWARF()
	if err != nil {
		return nil, &ErrNoDebugInfo{Path: path, Err: err}
	}

	bi := newBinaryInfo(path, entry)
	if err := bi.loadDebugInfo(data); err != nil {
		return nil, &ErrNoDebugInfo{Path: path, Err: err}
	}
	bi.finalize()
	bi.log.Debugf("loaded %d functions and %d line rows from %s", len(bi.Functions), len(bi.lines), path)
	return bi, nil
}

func (bi *BinaryInfo) loadDebugInfo(data *dwarf.Data) error {
	var files []*dwarf.LineFile
	rdr := data.Reader()
	for {
		entry, err := rdr.Next()
		if err != nil {
			return err
		}
		if entry == nil {
			return nil
		}
		switch entry.Tag {
		case dwarf.TagCompileUnit:
			files = nil
			lr, err := data.LineReader(entry)
			if err != nil {
				return err
			}
			if lr != nil {
				if err := bi.readLines(lr); err != nil {
					return err
				}
				files = lr.Files()
			}
		case dwarf.TagSubprogram:
			bi.addFunction(entry, files)
			rdr.SkipChildren()
		}
	}
}

func (bi *BinaryInfo) readLines(lr *dwarf.LineReader) error {
	var le dwarf.LineEntry
	for {
		err := lr.Next(&le)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		row := lineRow{
			Addr:        le.Address,
			Line:        le.Line,
			IsStmt:      le.IsStmt,
			PrologueEnd: le.PrologueEnd,
			EndSeq:      le.EndSequence,
		}
		if le.File != nil {
			row.File = le.File.Name
		}
		bi.lines = append(bi.lines, row)
	}
}

func (bi *BinaryInfo) addFunction(entry *dwarf.Entry, files []*dwarf.LineFile) {
	name, _ := entry.Val(dwarf.AttrName).(string)
	lowpc, ok := entry.Val(dwarf.AttrLowpc).(uint64)
	if name == "" || !ok {
		// declarations and abstract instances have no code
		return
	}
	highpc := lowpc
	if field := entry.AttrField(dwarf.AttrHighpc); field != nil {
		switch v := field.Val.(type) {
		case uint64:
			highpc = v
			if field.Class == dwarf.ClassConstant {
				highpc = lowpc + v
			}
		case int64:
			// DWARF 4 and later encode high pc as an offset from low pc
			highpc = lowpc + uint64(v)
		}
	}
	fn := Function{Name: name, Entry: lowpc, End: highpc}
	if idx, ok := entry.Val(dwarf.AttrDeclFile).(int64); ok && idx >= 0 && int(idx) < len(files) && files[idx] != nil {
		fn.DeclFile = files[idx].Name
	}
	bi.Functions = append(bi.Functions, fn)
}

// finalize sorts the tables and builds the indexes used by lookups.
func (bi *BinaryInfo) finalize() {
	sort.SliceStable(bi.lines, func(i, j int) bool {
		a, b := bi.lines[i], bi.lines[j]
		if a.Addr != b.Addr {
			return a.Addr < b.Addr
		}
		return a.EndSeq && !b.EndSeq
	})
	sort.Slice(bi.Functions, func(i, j int) bool { return bi.Functions[i].Entry < bi.Functions[j].Entry })
	for i := range bi.Functions {
		fn := &bi.Functions[i]
		if _, dup := bi.funcByName[fn.Name]; !dup {
			bi.funcByName[fn.Name] = fn
		}
	}
	if fn := bi.funcByName[bi.EntryFunction]; fn != nil {
		bi.defaultFile = fn.DeclFile
		if bi.defaultFile == "" {
			if row, ok := bi.rowAt(fn.Entry); ok {
				bi.defaultFile = row.File
			}
		}
	}
}

// DefaultFile returns the source file bare line numbers refer to.
func (bi *BinaryInfo) DefaultFile() string {
	return bi.defaultFile
}

// AddressForLine returns the lowest statement address of line in file. If
// line has no code the next line that has some is used.
func (bi *BinaryInfo) AddressForLine(file string, line int) (uint64, bool) {
	if file == "" {
		file = bi.defaultFile
	}
	if file == "" {
		return 0, false
	}
	bestLine, bestAddr, found := 0, uint64(0), false
	for _, row := range bi.lines {
		if !row.IsStmt || row.EndSeq || row.Line < line || !sameFile(row.File, file) {
			continue
		}
		if !found || row.Line < bestLine || (row.Line == bestLine && row.Addr < bestAddr) {
			bestLine, bestAddr, found = row.Line, row.Addr, true
		}
	}
	if found && logflags.Symbols() {
		bi.log.Debugf("%s:%d resolved to line %d at %#x", file, line, bestLine, bestAddr)
	}
	return bestAddr, found
}

func sameFile(path, file string) bool {
	return path == file || strings.HasSuffix(path, "/"+file) || filepath.Base(file) == file && filepath.Base(path) == file
}

// AddressForFunction returns the address of the first instruction after
// the prologue of the named function.
func (bi *BinaryInfo) AddressForFunction(name string) (uint64, bool) {
	fn, ok := bi.funcByName[name]
	if !ok {
		return 0, false
	}
	return bi.firstPCAfterPrologue(fn), true
}

// firstPCAfterPrologue returns the address marked as the end of the
// prologue by the compiler or, failing that, the first statement that
// belongs to a line after the line of the entry point.
func (bi *BinaryInfo) firstPCAfterPrologue(fn *Function) uint64 {
	i := sort.Search(len(bi.lines), func(i int) bool { return bi.lines[i].Addr >= fn.Entry })
	firstLine := -1
	fallback := fn.Entry
	for ; i < len(bi.lines) && bi.lines[i].Addr < fn.End; i++ {
		row := bi.lines[i]
		if row.EndSeq {
			if row.Addr == fn.Entry {
				// end of the previous sequence
				continue
			}
			break
		}
		if row.PrologueEnd {
			return row.Addr
		}
		if firstLine < 0 {
			firstLine = row.Line
			continue
		}
		if fallback == fn.Entry && row.IsStmt && row.Line != firstLine && row.Addr > fn.Entry {
			fallback = row.Addr
		}
	}
	return fallback
}

// FunctionAt returns the name of the function containing addr.
func (bi *BinaryInfo) FunctionAt(addr uint64) (string, bool) {
	r := bi.resolve(addr)
	return r.fn, r.fnOK
}

// LineAt returns the source position of addr.
func (bi *BinaryInfo) LineAt(addr uint64) (string, int, bool) {
	r := bi.resolve(addr)
	return r.loc.File, r.loc.Line, r.locOK
}

// PCToFunc returns the function containing pc, or nil.
func (bi *BinaryInfo) PCToFunc(pc uint64) *Function {
	i := sort.Search(len(bi.Functions), func(i int) bool { return bi.Functions[i].Entry > pc })
	if i == 0 {
		return nil
	}
	fn := &bi.Functions[i-1]
	if pc >= fn.End {
		return nil
	}
	return fn
}

func (bi *BinaryInfo) resolve(addr uint64) lookup {
	if v, ok := bi.cache.Get(addr); ok {
		return v.(lookup)
	}
	var r lookup
	if fn := bi.PCToFunc(addr); fn != nil {
		r.fn, r.fnOK = fn.Name, true
	}
	if row, ok := bi.rowAt(addr); ok {
		r.loc, r.locOK = Location{File: row.File, Line: row.Line}, true
	}
	bi.cache.Add(addr, r)
	return r
}

// rowAt returns the line table row covering addr.
func (bi *BinaryInfo) rowAt(addr uint64) (lineRow, bool) {
	i := sort.Search(len(bi.lines), func(i int) bool { return bi.lines[i].Addr > addr })
	if i == 0 {
		return lineRow{}, false
	}
	row := bi.lines[i-1]
	if row.EndSeq {
		return lineRow{}, false
	}
	return row, true
}
