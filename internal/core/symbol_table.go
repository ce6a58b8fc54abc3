package core

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// FuncID, CallID and GlobalID are handles issued by an Arena. Two records
// with the same name are distinct unless they share a handle.
type (
	FuncID   int
	CallID   int
	GlobalID int
)

// NoFunc marks the absence of a function.
const NoFunc FuncID = -1

// Function is a function known to a translation unit. External functions
// (library calls) have no definition.
type Function struct {
	ID   FuncID
	Name string
	Def  *sitter.Node
	// Prototypes holds the function_declarator of every forward declaration.
	Prototypes []*sitter.Node
	IsEntry    bool
}

// IsExternal reports whether the function is only called, never defined.
func (f *Function) IsExternal() bool {
	return f.Def == nil
}

// CallSite is one call expression inside a function body.
type CallSite struct {
	ID         CallID
	Node       *sitter.Node
	CalleeName string
	Caller     FuncID
	Callee     FuncID
	// AddedArgs lists the arguments appended to this call, in order.
	AddedArgs []string
}

// GlobalVar is one declarator of a file-scope variable declaration.
type GlobalVar struct {
	ID   GlobalID
	Name string
	// TypeText is the declaration's type with qualifiers, without storage class.
	TypeText string
	// DeclaratorText is the declarator source without its initializer.
	DeclaratorText string
	InitText       string
	Dims           []string
	IsArray        bool
	IsPointer      bool
	IsConst        bool
	IsStatic       bool
	HasInitializer bool
	// Declarator is the declarator node without the initializer.
	Declarator *sitter.Node
	// Decl is the whole declaration the variable belongs to.
	Decl *sitter.Node
}

// Arena owns every Function, CallSite and GlobalVar record of one
// translation unit and hands out integer handles for them.
type Arena struct {
	funcs   []*Function
	calls   []*CallSite
	globals []*GlobalVar

	funcByName   map[string]FuncID
	globalByName map[string]GlobalID
	callByKey    map[NodeKey]CallID
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{
		funcByName:   make(map[string]FuncID),
		globalByName: make(map[string]GlobalID),
		callByKey:    make(map[NodeKey]CallID),
	}
}

// AddFunction registers a function by name. A later definition fills in a
// record created earlier for a call or a prototype.
func (a *Arena) AddFunction(name string, def *sitter.Node) FuncID {
	if id, ok := a.funcByName[name]; ok {
		if def != nil && a.funcs[id].Def == nil {
			a.funcs[id].Def = def
		}
		return id
	}
	id := FuncID(len(a.funcs))
	a.funcs = append(a.funcs, &Function{ID: id, Name: name, Def: def})
	a.funcByName[name] = id
	return id
}

// AddPrototype records a forward declaration of name.
func (a *Arena) AddPrototype(name string, declarator *sitter.Node) FuncID {
	id := a.AddFunction(name, nil)
	a.funcs[id].Prototypes = append(a.funcs[id].Prototypes, declarator)
	return id
}

// Function returns the record for id.
func (a *Arena) Function(id FuncID) *Function {
	return a.funcs[id]
}

// FunctionByName looks a function up by name.
func (a *Arena) FunctionByName(name string) (*Function, bool) {
	id, ok := a.funcByName[name]
	if !ok {
		return nil, false
	}
	return a.funcs[id], true
}

// Functions returns all functions in registration order.
func (a *Arena) Functions() []*Function {
	return a.funcs
}

// AddCall registers a call site.
func (a *Arena) AddCall(node *sitter.Node, calleeName string, caller, callee FuncID) CallID {
	id := CallID(len(a.calls))
	a.calls = append(a.calls, &CallSite{
		ID:         id,
		Node:       node,
		CalleeName: calleeName,
		Caller:     caller,
		Callee:     callee,
	})
	a.callByKey[KeyOf(node)] = id
	return id
}

// Call returns the record for id.
func (a *Arena) Call(id CallID) *CallSite {
	return a.calls[id]
}

// Calls returns all call sites in source order.
func (a *Arena) Calls() []*CallSite {
	return a.calls
}

// CallAt returns the call site registered for a call_expression node.
func (a *Arena) CallAt(node *sitter.Node) (*CallSite, bool) {
	id, ok := a.callByKey[KeyOf(node)]
	if !ok {
		return nil, false
	}
	return a.calls[id], true
}

// AddGlobal registers a global variable. Redeclaring a name keeps the first
// record, since C tentative definitions denote one object.
func (a *Arena) AddGlobal(g GlobalVar) GlobalID {
	if id, ok := a.globalByName[g.Name]; ok {
		return id
	}
	id := GlobalID(len(a.globals))
	g.ID = id
	a.globals = append(a.globals, &g)
	a.globalByName[g.Name] = id
	return id
}

// Global returns the record for id.
func (a *Arena) Global(id GlobalID) *GlobalVar {
	return a.globals[id]
}

// GlobalByName looks a global variable up by name.
func (a *Arena) GlobalByName(name string) (*GlobalVar, bool) {
	id, ok := a.globalByName[name]
	if !ok {
		return nil, false
	}
	return a.globals[id], true
}

// Globals returns all globals in declaration order.
func (a *Arena) Globals() []*GlobalVar {
	return a.globals
}
