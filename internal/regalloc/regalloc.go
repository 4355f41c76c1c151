// Package regalloc implements spec.md §4.4's Allocate pass: liveness
// analysis, interference-graph construction, DSATUR graph coloring,
// assign-homes, and patch, in that order. It replaces every xselect.VReg
// with a real machine register or a [rbp-K] stack slot.
//
// Grounded on the original compiler's assign/interference passes
// (liveness → interference → color → assign → patch, each its own
// sub-step feeding the next) generalized into Go's flatter style: one
// function per step instead of one wrapper type per intermediate
// representation, since Go doesn't carry Rust's impl-on-newtype idiom.
package regalloc

import (
	"sort"

	xselect "jjc/internal/select"
	"jjc/internal/symtab"
)

// allocatableRegs is the fixed color order spec.md §4.4 requires: every
// GPR except RSP and RBP (reserved for the frame) and RAX (reserved as
// patch's scratch register for memory-to-memory fix-ups).
var allocatableRegs = []xselect.Reg{
	xselect.RBX, xselect.RCX, xselect.RDX, xselect.RSI, xselect.RDI,
	xselect.R8, xselect.R9, xselect.R10, xselect.R11,
	xselect.R12, xselect.R13, xselect.R14, xselect.R15,
}

// Coalesce toggles the optional move-coalescing refinement spec.md §9
// leaves open: when true, DSATUR's color choice for a node is biased
// toward a color already held by a register it is move-related to (the
// two ends of a `movq` select instruction lowered it from), so the
// move survives allocation as a same-register no-op that patch then
// drops. Off by default: plain DSATUR, picking the lowest free color,
// is what spec.md §4.4 specifies outright.
var Coalesce = false

// Allocate runs the full pipeline over every non-intrinsic function in
// prog and returns a new Program with every VReg replaced by an MReg or
// Deref. Intrinsic functions (read/print) are passed through unchanged:
// every operand they use already names a real register or a fixed stack
// slot, so there's nothing for this pass to color — see DESIGN.md.
func Allocate(prog *xselect.Program) *xselect.Program {
	out := &xselect.Program{Main: prog.Main}
	for _, fn := range prog.Funcs {
		if fn.Intrinsic {
			out.Funcs = append(out.Funcs, fn)
			continue
		}
		out.Funcs = append(out.Funcs, allocateFunc(fn))
	}
	return out
}

// larg is the node identity the interference graph and coloring operate
// over: either a fixed machine register or a virtual register's symbol.
// Matches spec.md §4.4's `LArg = Reg(r) | Var(s)`.
type larg struct {
	isReg bool
	reg   xselect.Reg
	sym   symtab.Symbol
}

func regArg(r xselect.Reg) larg    { return larg{isReg: true, reg: r} }
func varArg(s symtab.Symbol) larg  { return larg{sym: s} }
func (a larg) key() int64 {
	if a.isReg {
		return -int64(a.reg) - 1 // negative keys can never collide with a symbol id
	}
	return a.sym.ID()
}

func allocateFunc(fn *xselect.Func) *xselect.Func {
	order := instrOrder(fn)
	liveAfter := computeLiveness(fn, order)
	graph := buildInterference(fn, order, liveAfter)
	colorMap, stackSpace := colorGraph(graph, fn.ParamSyms, moveRelated(fn))

	blocks := make([]*xselect.Block, len(fn.Blocks))
	for i, b := range fn.Blocks {
		blocks[i] = assignBlock(b, colorMap)
	}
	for i, b := range blocks {
		blocks[i] = patchBlock(b)
	}

	out := *fn
	out.Blocks = blocks
	out.FixedStackSpace = stackSpace
	return &out
}

// --- read/write sets (spec.md §4.4) -----------------------------------

// readWrite reports the larg nodes i reads from and writes to. Every Arg
// slot an instruction touches is classified per spec.md §4.3's shapes;
// Imm contributes nothing, a Deref's Base/Index registers are always
// reads (the memory cell itself is not a graph node), and a VReg or MReg
// operand is a read, a write, or both depending on the instruction.
func readWrite(i xselect.Instr) (reads, writes []larg) {
	addRead := func(a xselect.Arg) {
		switch x := a.(type) {
		case xselect.MReg:
			reads = append(reads, regArg(x.Reg))
		case xselect.VReg:
			reads = append(reads, varArg(x.Sym))
		case xselect.Deref:
			reads = append(reads, regArg(x.Base))
			if x.Scale != 0 {
				reads = append(reads, regArg(x.Index))
			}
		}
	}
	addWrite := func(a xselect.Arg) {
		switch x := a.(type) {
		case xselect.MReg:
			writes = append(writes, regArg(x.Reg))
		case xselect.VReg:
			writes = append(writes, varArg(x.Sym))
		case xselect.Deref:
			// Writing through a deref still reads the address registers.
			reads = append(reads, regArg(x.Base))
			if x.Scale != 0 {
				reads = append(reads, regArg(x.Index))
			}
		}
	}

	switch x := i.(type) {
	case xselect.Leaq:
		reads = append(reads, regArg(x.Src.Base))
		if x.Src.Scale != 0 {
			reads = append(reads, regArg(x.Src.Index))
		}
		addWrite(x.Dst)
	case xselect.Movq:
		addRead(x.Src)
		addWrite(x.Dst)
	case xselect.Addq:
		addRead(x.Src)
		addRead(x.Dst)
		addWrite(x.Dst)
	case xselect.Subq:
		addRead(x.Src)
		addRead(x.Dst)
		addWrite(x.Dst)
	case xselect.Andq:
		addRead(x.Src)
		addRead(x.Dst)
		addWrite(x.Dst)
	case xselect.Orq:
		addRead(x.Src)
		addRead(x.Dst)
		addWrite(x.Dst)
	case xselect.Xorq:
		addRead(x.Src)
		addRead(x.Dst)
		addWrite(x.Dst)
	case xselect.Mulq: // implicit rax * src -> rdx:rax
		addRead(x.Src)
		reads = append(reads, regArg(xselect.RAX))
		writes = append(writes, regArg(xselect.RAX), regArg(xselect.RDX))
	case xselect.Divq: // implicit rdx:rax / src -> rax, rdx
		addRead(x.Src)
		reads = append(reads, regArg(xselect.RAX), regArg(xselect.RDX))
		writes = append(writes, regArg(xselect.RAX), regArg(xselect.RDX))
	case xselect.Cqo:
		reads = append(reads, regArg(xselect.RAX))
		writes = append(writes, regArg(xselect.RDX))
	case xselect.Negq:
		addRead(x.Dst)
		addWrite(x.Dst)
	case xselect.Notq:
		addRead(x.Dst)
		addWrite(x.Dst)
	case xselect.Cmpq:
		addRead(x.L)
		addRead(x.R)
	case xselect.SetCC:
		addWrite(x.Dst)
	case xselect.Pushq:
		addRead(x.Src)
	case xselect.Popq:
		addWrite(x.Dst)
	case xselect.CallDirect:
		// Modeled as reading the SysV argument registers up to the
		// call's arity and writing every caller-saved register; arity
		// isn't tracked on CallDirect, so conservatively model all six
		// argument registers as read (safe: a false "read" only keeps
		// an already-dead register's interference edges, never drops
		// a real one).
		for _, r := range sysVArgRegs {
			reads = append(reads, regArg(r))
		}
		writes = append(writes, callerSavedRegs...)
		if x.Dst != nil {
			addWrite(x.Dst)
		}
	case xselect.CallIndirect:
		addRead(x.Callee)
		for _, r := range sysVArgRegs {
			reads = append(reads, regArg(r))
		}
		writes = append(writes, callerSavedRegs...)
		if x.Dst != nil {
			addWrite(x.Dst)
		}
	case xselect.Syscall:
		reads = append(reads, regArg(xselect.RAX), regArg(xselect.RDI), regArg(xselect.RSI),
			regArg(xselect.RDX), regArg(xselect.R10), regArg(xselect.R8), regArg(xselect.R9))
		writes = append(writes, regArg(xselect.RAX), regArg(xselect.RCX), regArg(xselect.R11))
	case xselect.Retq:
		reads = append(reads, regArg(xselect.RAX))
	case xselect.Jmp, xselect.Jcc:
		// Handled by the block-successor liveness propagation, not here.
	}
	return reads, writes
}

var sysVArgRegs = []xselect.Reg{xselect.RDI, xselect.RSI, xselect.RDX, xselect.RCX, xselect.R8, xselect.R9}

var callerSavedRegs = []larg{
	regArg(xselect.RAX), regArg(xselect.RCX), regArg(xselect.RDX), regArg(xselect.RSI), regArg(xselect.RDI),
	regArg(xselect.R8), regArg(xselect.R9), regArg(xselect.R10), regArg(xselect.R11),
}

// --- liveness ----------------------------------------------------------

// loc names one instruction's position for liveness bookkeeping.
type loc struct {
	block int
	idx   int
}

// instrOrder flattens fn's blocks into a stable index (block order, then
// instruction order within a block) so liveness and interference can
// address individual instructions without re-walking nested slices.
func instrOrder(fn *xselect.Func) []loc {
	var order []loc
	for bi, b := range fn.Blocks {
		for ii := range b.Instr {
			order = append(order, loc{block: bi, idx: ii})
		}
	}
	return order
}

// computeLiveness runs spec.md §4.4's backwards dataflow to a fixed
// point and returns, per instruction location, the live-after set.
func computeLiveness(fn *xselect.Func, order []loc) map[loc]map[int64]larg {
	labelIndex := make(map[int64]int, len(fn.Blocks))
	for i, b := range fn.Blocks {
		labelIndex[b.Label.ID()] = i
	}

	blockEntryLive := make([]map[int64]larg, len(fn.Blocks))
	for i := range blockEntryLive {
		blockEntryLive[i] = map[int64]larg{}
	}

	liveAfter := make(map[loc]map[int64]larg, len(order))

	// selectBlock (internal/select) always ends a block in one of two
	// shapes: a lone Jmp (unconditional goto/return-to-exit), or a Jcc
	// immediately followed by a Jmp (the `if c goto L1 else L2` shape,
	// spec.md §4.3) — never a bare trailing Jcc. Both must be checked
	// from the end, since the Jcc, if present, is the second-to-last
	// instruction rather than the last.
	successors := func(bi int) []int {
		b := fn.Blocks[bi]
		n := len(b.Instr)
		if n == 0 {
			return nil
		}
		var succ []int
		if n >= 2 {
			if jcc, ok := b.Instr[n-2].(xselect.Jcc); ok {
				if j, ok := labelIndex[jcc.Target.ID()]; ok {
					succ = append(succ, j)
				}
			}
		}
		if jmp, ok := b.Instr[n-1].(xselect.Jmp); ok {
			if j, ok := labelIndex[jmp.Target.ID()]; ok {
				succ = append(succ, j)
			}
		}
		return succ
	}

	changed := true
	for changed {
		changed = false
		for bi := len(fn.Blocks) - 1; bi >= 0; bi-- {
			b := fn.Blocks[bi]
			live := map[int64]larg{}
			for _, s := range successors(bi) {
				for k, v := range blockEntryLive[s] {
					live[k] = v
				}
			}
			if len(successors(bi)) == 0 {
				// Falls into exit, or is exit itself: ret reads rax.
				live[regArg(xselect.RAX).key()] = regArg(xselect.RAX)
			}

			for ii := len(b.Instr) - 1; ii >= 0; ii-- {
				liveAfter[loc{block: bi, idx: ii}] = copyLargSet(live)
				reads, writes := readWrite(b.Instr[ii])
				for _, w := range writes {
					delete(live, w.key())
				}
				for _, r := range reads {
					live[r.key()] = r
				}
			}

			if !largSetEqual(live, blockEntryLive[bi]) {
				blockEntryLive[bi] = live
				changed = true
			}
		}
	}
	return liveAfter
}

func copyLargSet(m map[int64]larg) map[int64]larg {
	out := make(map[int64]larg, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func largSetEqual(a, b map[int64]larg) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}

// --- interference graph --------------------------------------------------

type graph struct {
	nodes map[int64]larg
	adj   map[int64]map[int64]bool
}

func newGraph() *graph {
	return &graph{nodes: map[int64]larg{}, adj: map[int64]map[int64]bool{}}
}

func (g *graph) addNode(a larg) {
	if _, ok := g.nodes[a.key()]; !ok {
		g.nodes[a.key()] = a
		g.adj[a.key()] = map[int64]bool{}
	}
}

func (g *graph) addEdge(a, b larg) {
	if a.key() == b.key() {
		return
	}
	g.addNode(a)
	g.addNode(b)
	g.adj[a.key()][b.key()] = true
	g.adj[b.key()][a.key()] = true
}

// buildInterference implements spec.md §4.4's interference rule: for
// every write w and every l in live-after with l != w, add edge (w, l).
// A variable read but never written still gets an isolated node so
// coloring assigns it a home.
func buildInterference(fn *xselect.Func, order []loc, liveAfter map[loc]map[int64]larg) *graph {
	g := newGraph()
	for _, l := range order {
		ins := fn.Blocks[l.block].Instr[l.idx]
		_, writes := readWrite(ins)
		live := liveAfter[l]
		for _, w := range writes {
			g.addNode(w)
			for _, la := range live {
				if la.key() == w.key() {
					continue
				}
				g.addEdge(w, la)
			}
		}
	}
	// Variables read but never written (e.g. a parameter never
	// reassigned) still need a graph node so coloring gives them a home.
	for _, l := range order {
		ins := fn.Blocks[l.block].Instr[l.idx]
		rs, _ := readWrite(ins)
		for _, r := range rs {
			g.addNode(r)
		}
	}
	return g
}

// moveRelated scans fn for movq select instructions between two locations
// that could, if colored alike, be dropped as a same-register no-op by
// patch: VReg-to-VReg moves, and moves between a VReg and a fixed
// register (e.g. a return value moved into RAX). It returns, per node
// key, the sorted keys of every node it is move-related to — sorted so
// Coalesce's bias is as deterministic as plain DSATUR.
func moveRelated(fn *xselect.Func) map[int64][]int64 {
	rel := map[int64]map[int64]bool{}
	add := func(a, b larg) {
		if a.key() == b.key() {
			return
		}
		if rel[a.key()] == nil {
			rel[a.key()] = map[int64]bool{}
		}
		if rel[b.key()] == nil {
			rel[b.key()] = map[int64]bool{}
		}
		rel[a.key()][b.key()] = true
		rel[b.key()][a.key()] = true
	}
	for _, b := range fn.Blocks {
		for _, ins := range b.Instr {
			mv, ok := ins.(xselect.Movq)
			if !ok {
				continue
			}
			srcV, srcIsVReg := mv.Src.(xselect.VReg)
			dstV, dstIsVReg := mv.Dst.(xselect.VReg)
			srcR, srcIsMReg := mv.Src.(xselect.MReg)
			dstR, dstIsMReg := mv.Dst.(xselect.MReg)
			switch {
			case srcIsVReg && dstIsVReg:
				add(varArg(srcV.Sym), varArg(dstV.Sym))
			case srcIsVReg && dstIsMReg:
				add(varArg(srcV.Sym), regArg(dstR.Reg))
			case dstIsVReg && srcIsMReg:
				add(varArg(dstV.Sym), regArg(srcR.Reg))
			}
		}
	}
	out := make(map[int64][]int64, len(rel))
	for k, s := range rel {
		keys := make([]int64, 0, len(s))
		for nb := range s {
			keys = append(keys, nb)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
		out[k] = keys
	}
	return out
}

// --- coloring ------------------------------------------------------------

// regColor maps a machine register to its fixed color: its index within
// allocatableRegs, the same fixed order colors 0..N are drawn from, so a
// precolored register and a colors-0..N-assigned variable are directly
// comparable. A register outside that set (RAX, reserved as patch's
// scratch; RSP/RBP, reserved for the frame) gets a negative sentinel —
// distinct from every real color, so it never blocks or collides with
// one, matching "any reserved scratch such as RAX" being excluded from
// the allocatable set per spec.md §4.4.
func regColor(r xselect.Reg) int {
	for i, a := range allocatableRegs {
		if a == r {
			return i
		}
	}
	return -1
}

func colorGraph(g *graph, params []symtab.Symbol, moves map[int64][]int64) (map[int64]xselect.Arg, int) {
	colorOf := make(map[int64]int, len(g.nodes))
	for _, n := range g.nodes {
		if n.isReg {
			colorOf[n.key()] = regColor(n.reg)
		}
	}

	uncolored := make([]larg, 0, len(g.nodes))
	for _, n := range g.nodes {
		if !n.isReg {
			uncolored = append(uncolored, n)
		}
	}
	// Stable order so ties resolve deterministically (spec.md's
	// pass-determinism property).
	sort.Slice(uncolored, func(i, j int) bool { return uncolored[i].sym.ID() < uncolored[j].sym.ID() })

	degree := func(n larg) int { return len(g.adj[n.key()]) }
	saturation := func(n larg) int {
		seen := map[int]bool{}
		for nb := range g.adj[n.key()] {
			if c, ok := colorOf[nb]; ok {
				seen[c] = true
			}
		}
		return len(seen)
	}

	numColorable := len(allocatableRegs)

	for len(uncolored) > 0 {
		best := 0
		for i := 1; i < len(uncolored); i++ {
			si, sb := saturation(uncolored[i]), saturation(uncolored[best])
			if si > sb || (si == sb && degree(uncolored[i]) > degree(uncolored[best])) {
				best = i
			}
		}
		n := uncolored[best]
		uncolored = append(uncolored[:best], uncolored[best+1:]...)

		used := map[int]bool{}
		for nb := range g.adj[n.key()] {
			if c, ok := colorOf[nb]; ok {
				used[c] = true
			}
		}

		c := -1
		if Coalesce {
			for _, nb := range moves[n.key()] {
				if mc, ok := colorOf[nb]; ok && mc >= 0 && !used[mc] {
					c = mc
					break
				}
			}
		}
		if c < 0 {
			c = 0
			for used[c] {
				c++
			}
		}
		colorOf[n.key()] = c
	}

	colorMap := make(map[int64]xselect.Arg, len(g.nodes))
	maxSlot := 0
	for _, n := range g.nodes {
		if n.isReg {
			continue
		}
		c := colorOf[n.key()]
		if c < numColorable {
			colorMap[n.key()] = xselect.MReg{Reg: allocatableRegs[c]}
			continue
		}
		slot := c - numColorable + 1
		if slot > maxSlot {
			maxSlot = slot
		}
		colorMap[n.key()] = xselect.Deref{Base: xselect.RBP, Offset: int32(-8 * slot)}
	}
	// Every parameter needs a home even if Allocate never observed it
	// interfering with anything (an unused parameter is still read by
	// prependParamMoves's prologue move).
	for _, p := range params {
		if _, ok := colorMap[p.ID()]; !ok {
			colorMap[p.ID()] = xselect.MReg{Reg: allocatableRegs[0]}
		}
	}

	stackSpace := maxSlot * 8
	if stackSpace%16 != 0 {
		stackSpace += 16 - stackSpace%16
	}
	return colorMap, stackSpace
}

// --- assign homes ----------------------------------------------------------

func assignBlock(b *xselect.Block, colorMap map[int64]xselect.Arg) *xselect.Block {
	out := &xselect.Block{Label: b.Label}
	for _, ins := range b.Instr {
		out.Instr = append(out.Instr, assignInstr(ins, colorMap))
	}
	return out
}

func home(a xselect.Arg, colorMap map[int64]xselect.Arg) xselect.Arg {
	v, ok := a.(xselect.VReg)
	if !ok {
		return a
	}
	if h, ok := colorMap[v.Sym.ID()]; ok {
		return h
	}
	// A VReg live nowhere (e.g. the call-statement "discard" sink) still
	// needs some home; give it a scratch register, its value is unused.
	return xselect.MReg{Reg: allocatableRegs[0]}
}

func assignInstr(i xselect.Instr, colorMap map[int64]xselect.Arg) xselect.Instr {
	switch x := i.(type) {
	case xselect.Leaq:
		return xselect.Leaq{Src: x.Src, Dst: home(x.Dst, colorMap)}
	case xselect.Movq:
		return xselect.Movq{Src: home(x.Src, colorMap), Dst: home(x.Dst, colorMap)}
	case xselect.Addq:
		return xselect.Addq{Src: home(x.Src, colorMap), Dst: home(x.Dst, colorMap)}
	case xselect.Subq:
		return xselect.Subq{Src: home(x.Src, colorMap), Dst: home(x.Dst, colorMap)}
	case xselect.Andq:
		return xselect.Andq{Src: home(x.Src, colorMap), Dst: home(x.Dst, colorMap)}
	case xselect.Orq:
		return xselect.Orq{Src: home(x.Src, colorMap), Dst: home(x.Dst, colorMap)}
	case xselect.Xorq:
		return xselect.Xorq{Src: home(x.Src, colorMap), Dst: home(x.Dst, colorMap)}
	case xselect.Mulq:
		return xselect.Mulq{Src: home(x.Src, colorMap)}
	case xselect.Divq:
		return xselect.Divq{Src: home(x.Src, colorMap)}
	case xselect.Cqo:
		return x
	case xselect.Negq:
		return xselect.Negq{Dst: home(x.Dst, colorMap)}
	case xselect.Notq:
		return xselect.Notq{Dst: home(x.Dst, colorMap)}
	case xselect.Cmpq:
		return xselect.Cmpq{L: home(x.L, colorMap), R: home(x.R, colorMap)}
	case xselect.SetCC:
		return xselect.SetCC{Cond: x.Cond, Dst: home(x.Dst, colorMap)}
	case xselect.Pushq:
		return xselect.Pushq{Src: home(x.Src, colorMap)}
	case xselect.Popq:
		return xselect.Popq{Dst: home(x.Dst, colorMap)}
	case xselect.CallDirect:
		var dst xselect.Arg
		if x.Dst != nil {
			dst = home(x.Dst, colorMap)
		}
		return xselect.CallDirect{Target: x.Target, Dst: dst}
	case xselect.CallIndirect:
		var dst xselect.Arg
		if x.Dst != nil {
			dst = home(x.Dst, colorMap)
		}
		return xselect.CallIndirect{Callee: home(x.Callee, colorMap), Dst: dst}
	default:
		// Jmp, Jcc, Retq, Syscall carry no VReg operands.
		return i
	}
}

// --- patch -----------------------------------------------------------------

func isMem(a xselect.Arg) bool {
	_, ok := a.(xselect.Deref)
	return ok
}

// patchBlock implements spec.md §4.4's patch rule: an addq/subq/movq/cmpq
// with both operands in memory is split in two using RAX as scratch.
func patchBlock(b *xselect.Block) *xselect.Block {
	out := &xselect.Block{Label: b.Label}
	scratch := xselect.MReg{Reg: xselect.RAX}

	emit := func(ins ...xselect.Instr) { out.Instr = append(out.Instr, ins...) }

	for _, ins := range b.Instr {
		switch x := ins.(type) {
		case xselect.Movq:
			if isMem(x.Src) && isMem(x.Dst) {
				emit(xselect.Movq{Src: x.Src, Dst: scratch}, xselect.Movq{Src: scratch, Dst: x.Dst})
				continue
			}
			if x.Src == x.Dst {
				continue // redundant movq r, r
			}
			emit(x)
		case xselect.Addq:
			if isMem(x.Src) && isMem(x.Dst) {
				emit(xselect.Movq{Src: x.Src, Dst: scratch}, xselect.Addq{Src: scratch, Dst: x.Dst})
				continue
			}
			emit(x)
		case xselect.Subq:
			if isMem(x.Src) && isMem(x.Dst) {
				emit(xselect.Movq{Src: x.Src, Dst: scratch}, xselect.Subq{Src: scratch, Dst: x.Dst})
				continue
			}
			emit(x)
		case xselect.Cmpq:
			if isMem(x.L) && isMem(x.R) {
				emit(xselect.Movq{Src: x.L, Dst: scratch}, xselect.Cmpq{L: scratch, R: x.R})
				continue
			}
			emit(x)
		default:
			emit(x)
		}
	}
	return out
}
