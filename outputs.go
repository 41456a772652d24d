package testharness

// Outputs holds the instances of one run keyed by plugin name, in setup order.
type Outputs struct {
	names     []string
	instances map[string]Instance[any]
}

func newOutputs() *Outputs {
	return &Outputs{instances: map[string]Instance[any]{}}
}

func (o *Outputs) add(name string, inst Instance[any]) {
	o.names = append(o.names, name)
	o.instances[name] = inst
}

// Len returns the number of plugins that were set up.
func (o *Outputs) Len() int {
	if o == nil {
		return 0
	}
	return len(o.names)
}

// Names returns plugin names in setup order.
func (o *Outputs) Names() []string {
	if o == nil {
		return nil
	}
	return append([]string(nil), o.names...)
}

// Get returns the untyped instance for name. Prefer Key.Instance.
func (o *Outputs) Get(name string) (Instance[any], bool) {
	if o == nil {
		return Instance[any]{}, false
	}
	inst, ok := o.instances[name]
	return inst, ok
}
