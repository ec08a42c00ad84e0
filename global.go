package depot

// Global is the storage-wide singleton component: a keyed bag of Values not
// attached to any entity, serialized alongside the population. Field order is
// insertion order and is preserved across save/load.
type Global struct {
	fields []globalField
	index  map[string]int
}

type globalField struct {
	tag string
	val Value
}

func newGlobal() Global {
	return Global{index: make(map[string]int)}
}

func (g *Global) Len() int {
	return len(g.fields)
}

func (g *Global) Get(tag string) (Value, bool) {
	i, ok := g.index[tag]
	if !ok {
		return Value{}, false
	}
	return g.fields[i].val, true
}

// Set overwrites an existing field or appends a new one.
func (g *Global) Set(tag string, v Value) {
	if i, ok := g.index[tag]; ok {
		g.fields[i].val = v
		return
	}
	g.index[tag] = len(g.fields)
	g.fields = append(g.fields, globalField{tag: tag, val: v})
}

func (g *Global) Tags() []string {
	tags := make([]string, len(g.fields))
	for i, f := range g.fields {
		tags[i] = f.tag
	}
	return tags
}
