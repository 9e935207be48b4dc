package statemachine

// Template is the fixed part of a synthesized type: the members every instance
// of the kind has regardless of the user code it was lowered from.
type Template struct {
	Requests   []Request
	Interfaces []string
	// Attributes go on the synthesized type.
	Attributes []string
	// KickoffAttributes go on the user method that creates the state machine.
	KickoffAttributes []string
}

const (
	iAsyncStateMachine = "System.Runtime.CompilerServices.IAsyncStateMachine"
	iDisposable        = "System.IDisposable"
	iEnumerator        = "System.Collections.IEnumerator"
	iEnumerable        = "System.Collections.IEnumerable"
	iAsyncDisposable   = "System.IAsyncDisposable"
)

func field(role Role, name, typ string) Request {
	return Request{Role: role, Kind: MemberField, Name: name, Type: typ}
}

func helper(name string, params int, implements string) Request {
	return Request{Role: RoleHelperMethod, Kind: MemberMethod, Name: name, Params: params, Implements: implements}
}

func property(name, typ, getter string) Request {
	return Request{Role: RoleHelperMethod, Kind: MemberProperty, Name: name, Type: typ, Getter: getter}
}

func generic(name, arg string) string {
	if arg == "" {
		return name
	}
	return name + "<" + arg + ">"
}

// TemplateFor returns the template of a state machine of kind k. container is
// the type of the this proxy for instance methods.
func TemplateFor(k TypeKind, shape StateMachineShape, container string) Template {
	elem := shape.ElementType
	var tpl Template
	switch k {
	case TypeAsync:
		builder := "System.Runtime.CompilerServices.AsyncTaskMethodBuilder"
		if elem != "" && elem != "void" {
			builder = generic(builder, elem)
		}
		tpl.Requests = []Request{
			field(RoleStateOrdinal, "<>1__state", "int"),
			field(RoleBuilder, "<>t__builder", builder),
		}
		if shape.Instance {
			tpl.Requests = append(tpl.Requests, field(RoleThisProxy, "<>4__this", container))
		}
		tpl.Requests = append(tpl.Requests,
			helper(".ctor", 0, ""),
			helper("MoveNext", 0, iAsyncStateMachine+".MoveNext"),
			helper(iAsyncStateMachine+".SetStateMachine", 1, iAsyncStateMachine+".SetStateMachine"),
		)
		tpl.Interfaces = []string{iAsyncStateMachine}
		tpl.KickoffAttributes = []string{AsyncStateMachineAttribute, DebuggerStepThroughAttribute}

	case TypeIterator:
		ienumeratorT := generic("System.Collections.Generic.IEnumerator", elem)
		ienumerableT := generic("System.Collections.Generic.IEnumerable", elem)
		tpl.Requests = []Request{
			field(RoleStateOrdinal, "<>1__state", "int"),
			field(RoleCurrentValue, "<>2__current", elem),
			field(RoleInitialThreadID, "<>l__initialThreadId", "int"),
		}
		if shape.Instance {
			tpl.Requests = append(tpl.Requests, field(RoleThisProxy, "<>4__this", container))
		}
		tpl.Requests = append(tpl.Requests,
			helper(".ctor", 1, ""),
			helper(iDisposable+".Dispose", 0, iDisposable+".Dispose"),
			helper("MoveNext", 0, iEnumerator+".MoveNext"),
			helper(ienumeratorT+".get_Current", 0, ienumeratorT+".get_Current"),
			helper(iEnumerator+".Reset", 0, iEnumerator+".Reset"),
			helper(iEnumerator+".get_Current", 0, iEnumerator+".get_Current"),
			helper(ienumerableT+".GetEnumerator", 0, ienumerableT+".GetEnumerator"),
			helper(iEnumerable+".GetEnumerator", 0, iEnumerable+".GetEnumerator"),
			property(ienumeratorT+".Current", elem, ienumeratorT+".get_Current"),
			property(iEnumerator+".Current", "object", iEnumerator+".get_Current"),
		)
		tpl.Interfaces = []string{ienumerableT, iEnumerable, ienumeratorT, iDisposable, iEnumerator}
		tpl.KickoffAttributes = []string{IteratorStateMachineAttribute}

	case TypeAsyncIterator:
		iasyncEnumerableT := generic("System.Collections.Generic.IAsyncEnumerable", elem)
		iasyncEnumeratorT := generic("System.Collections.Generic.IAsyncEnumerator", elem)
		tpl.Requests = []Request{
			field(RoleStateOrdinal, "<>1__state", "int"),
			field(RoleBuilder, "<>t__builder", "System.Runtime.CompilerServices.AsyncIteratorMethodBuilder"),
			field(RoleTemplateField, "<>v__promiseOfValueOrEnd", "System.Threading.Tasks.Sources.ManualResetValueTaskSourceCore<bool>"),
			field(RoleCurrentValue, "<>2__current", elem),
			field(RoleTemplateField, "<>w__disposeMode", "bool"),
			field(RoleInitialThreadID, "<>l__initialThreadId", "int"),
		}
		if shape.Instance {
			tpl.Requests = append(tpl.Requests, field(RoleThisProxy, "<>4__this", container))
		}
		tpl.Requests = append(tpl.Requests,
			helper(".ctor", 1, ""),
			helper("MoveNext", 0, iAsyncStateMachine+".MoveNext"),
			helper(iAsyncStateMachine+".SetStateMachine", 1, iAsyncStateMachine+".SetStateMachine"),
			helper(iasyncEnumerableT+".GetAsyncEnumerator", 1, iasyncEnumerableT+".GetAsyncEnumerator"),
			helper(iasyncEnumeratorT+".MoveNextAsync", 0, iasyncEnumeratorT+".MoveNextAsync"),
			helper(iasyncEnumeratorT+".get_Current", 0, iasyncEnumeratorT+".get_Current"),
			helper(iAsyncDisposable+".DisposeAsync", 0, iAsyncDisposable+".DisposeAsync"),
			property(iasyncEnumeratorT+".Current", elem, iasyncEnumeratorT+".get_Current"),
		)
		tpl.Interfaces = []string{iasyncEnumerableT, iasyncEnumeratorT, iAsyncDisposable, iAsyncStateMachine}
		tpl.KickoffAttributes = []string{AsyncIteratorStateMachineAttribute}

	case TypeClosure:
		tpl.Requests = []Request{helper(".ctor", 0, "")}

	case TypeLambdaCache:
		tpl.Requests = []Request{
			{Role: RoleCacheInstance, Kind: MemberField, Name: "<>9", Type: "<>c", Static: true, Shared: true},
			{Role: RoleHelperMethod, Kind: MemberMethod, Name: ".cctor", Static: true, Shared: true},
			{Role: RoleHelperMethod, Kind: MemberMethod, Name: ".ctor", Shared: true},
		}
	}
	tpl.Attributes = []string{CompilerGeneratedAttribute}
	return tpl
}

// MoveNextName is the name of the method that carries a state machine's body.
const MoveNextName = "MoveNext"
