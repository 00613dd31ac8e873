package pvm

// Environments are chained frames of lexical variables. Each frame holds a
// vector of variable values and a link to the enclosing frame; a variable
// is addressed by (back, over): back frames up the chain, then index over
// within the frame.

type envHdr struct {
	vars Value // vector of variable values
	up   Value // enclosing environment, Null at the top level
}

const environmentWords = 3

// EnvPushFrame creates a fresh frame with room for hint variables on top
// of env (which may be Null for a top-level frame).
func (r *Runtime) EnvPushFrame(env Value, hint int) Value {
	r.h.PushRootBlock()
	defer r.h.PopRootBlock()
	r.h.BlockRoot(&env)
	vars := r.MakeVector(hint)
	r.h.BlockRoot(&vars)
	return r.h.alloc(KindEnvironment, &envHdr{vars: vars, up: env})
}

// EnvPopFrame returns the enclosing environment of env.
func (r *Runtime) EnvPopFrame(env Value) Value {
	return r.env(env, "pvm.EnvPopFrame").up
}

// EnvToplevel reports whether env is the outermost frame.
func (r *Runtime) EnvToplevel(env Value) bool {
	return r.env(env, "pvm.EnvToplevel").up == Null
}

// IsEnvironment reports whether v is an environment value.
func (r *Runtime) IsEnvironment(v Value) bool { return isKindInstance(r.h, v, KindEnvironment) }

func (r *Runtime) env(v Value, what string) *envHdr {
	return r.h.hdrOf(v, KindEnvironment, what).(*envHdr)
}

func (r *Runtime) envFrame(env Value, back int, what string) Value {
	for i := 0; i < back; i++ {
		env = r.env(env, what).up
		if env == Null {
			panic(what + ": environment chain exhausted")
		}
	}
	return env
}

// EnvRegisterVar appends a variable to the innermost frame and returns its
// index within the frame.
func (r *Runtime) EnvRegisterVar(env, val Value) int {
	vars := r.env(env, "pvm.EnvRegisterVar").vars
	r.VectorPush(vars, val)
	return r.VectorLen(vars) - 1
}

// EnvLookupVar returns the variable at lexical address (back, over).
func (r *Runtime) EnvLookupVar(env Value, back, over int) Value {
	frame := r.envFrame(env, back, "pvm.EnvLookupVar")
	return r.VectorAt(r.env(frame, "pvm.EnvLookupVar").vars, over)
}

// EnvSetVar replaces the variable at lexical address (back, over).
func (r *Runtime) EnvSetVar(env Value, back, over int, val Value) {
	frame := r.envFrame(env, back, "pvm.EnvSetVar")
	r.VectorSet(r.env(frame, "pvm.EnvSetVar").vars, over, val)
}

// EnvNumVars returns the number of variables in the innermost frame.
func (r *Runtime) EnvNumVars(env Value) int {
	return r.VectorLen(r.env(env, "pvm.EnvNumVars").vars)
}

func environmentShape() *Shape {
	return &Shape{
		Name: "environment",
		Kind: KindEnvironment,
		IsInstance: func(h *Heaplet, v Value) bool {
			return isKindInstance(h, v, KindEnvironment)
		},
		SizeOf: func(hdr header) int { return environmentWords },
		Copy: func(hdr header) header {
			cp := *hdr.(*envHdr)
			return &cp
		},
		ScanFields: func(h *Heaplet, hdr header, relocate func(*Value)) {
			e := hdr.(*envHdr)
			relocate(&e.vars)
			relocate(&e.up)
		},
	}
}
