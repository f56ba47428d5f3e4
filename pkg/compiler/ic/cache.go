package ic

import "github.com/zurustar/padscript/pkg/compiler/ast"

// exprKey identifies a computed expression.
type exprKey struct {
	op   string
	x, y Operand
}

type cacheEntry struct {
	key  exprKey
	temp *Temp
}

// cacheLevel holds the expressions computed in one lexical block. Lookups
// do not look past a barrier level.
type cacheLevel struct {
	entries []cacheEntry
	barrier bool
}

// exprCache is the stack of expression caches of the enclosing blocks.
type exprCache struct {
	levels []*cacheLevel
}

func (c *exprCache) push(barrier bool) {
	c.levels = append(c.levels, &cacheLevel{barrier: barrier})
}

func (c *exprCache) pop() {
	c.levels = c.levels[:len(c.levels)-1]
}

func (c *exprCache) lookup(k exprKey) *Temp {
	for i := len(c.levels) - 1; i >= 0; i-- {
		l := c.levels[i]
		for _, e := range l.entries {
			if e.key == k {
				return e.temp
			}
		}
		if l.barrier {
			break
		}
	}
	return nil
}

func (c *exprCache) add(k exprKey, t *Temp) {
	l := c.levels[len(c.levels)-1]
	l.entries = append(l.entries, cacheEntry{key: k, temp: t})
}

// invalidate drops every expression reading an operand for which stale
// returns true.
func (c *exprCache) invalidate(stale func(Operand) bool) {
	for _, l := range c.levels {
		kept := l.entries[:0]
		for _, e := range l.entries {
			if (e.key.x != nil && stale(e.key.x)) || (e.key.y != nil && stale(e.key.y)) {
				continue
			}
			kept = append(kept, e)
		}
		l.entries = kept
	}
}

// written drops the expressions reading the storage of dst.
func (c *exprCache) written(dst Operand) {
	root := rootBinding(dst)
	if root == nil {
		t, ok := dst.(*Temp)
		if !ok {
			return
		}
		c.invalidate(func(o Operand) bool { return o == Operand(t) })
		return
	}
	c.invalidate(func(o Operand) bool { return rootBinding(o) == root })
}

// clobbered drops every expression reading declared storage. Calls may
// write any global or member, and the report changes across a yield.
func (c *exprCache) clobbered() {
	c.invalidate(func(o Operand) bool { return rootBinding(o) != nil })
}

func rootBinding(o Operand) ast.Binding {
	switch o := o.(type) {
	case Var:
		return o.Binding
	case Member:
		return o.Root.Binding
	}
	return nil
}
