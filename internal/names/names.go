// Package names builds and parses the identifiers given to compiler-synthesized
// types and members. Every name is a pure function of its inputs so two runs over
// the same chain produce the same metadata strings.
package names

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Fixed member names of state machine types.
const (
	StateField           = "<>1__state"
	CurrentField         = "<>2__current"
	BuilderField         = "<>t__builder"
	InitialThreadIDField = "<>l__initialThreadId"
	ThisProxyField       = "<>4__this"
	LambdaCacheType      = "<>c"
	LambdaCacheInstance  = "<>9"
)

// Normalize returns the NFC form of an identifier so that visually equal names
// compare equal.
func Normalize(name string) string {
	if norm.NFC.IsNormalString(name) {
		return name
	}
	return norm.NFC.String(name)
}

func withGeneration(name string, gen int) string {
	if gen <= 0 {
		return name
	}
	return name + "#" + strconv.Itoa(gen)
}

// Replacement names the member that takes over a fixed name in generation gen
// when the member holding it can no longer be reused.
func Replacement(name string, gen int) string { return withGeneration(name, gen) }

// StripGeneration removes a trailing "#N" suffix and reports the generation.
func StripGeneration(name string) (string, int) {
	i := strings.LastIndexByte(name, '#')
	if i < 0 {
		return name, 0
	}
	gen, err := strconv.Atoi(name[i+1:])
	if err != nil || gen <= 0 {
		return name, 0
	}
	return name[:i], gen
}

// HoistedLocal names the field holding user local name: "<name>5__N".
func HoistedLocal(name string, n int) string {
	return "<" + Normalize(name) + ">5__" + strconv.Itoa(n)
}

// HoistedTemp names the field holding a compiler temporary: "<>s__N".
func HoistedTemp(n int) string {
	return "<>s__" + strconv.Itoa(n)
}

// Awaiter names an awaiter field: "<>u__N".
func Awaiter(n int) string {
	return "<>u__" + strconv.Itoa(n)
}

// StateMachineType names the state machine of method at methodOrdinal: "<F>d__0".
func StateMachineType(method string, methodOrdinal, gen int) string {
	return withGeneration("<"+Normalize(method)+">d__"+strconv.Itoa(methodOrdinal), gen)
}

// DisplayClass names a closure environment: "<>c__DisplayClass0_0".
func DisplayClass(methodOrdinal, closureOrdinal, gen int) string {
	return withGeneration("<>c__DisplayClass"+strconv.Itoa(methodOrdinal)+"_"+strconv.Itoa(closureOrdinal), gen)
}

// DisplayClassLink names the field that chains a display class to its parent scope.
func DisplayClassLink(closureOrdinal int) string {
	return "CS$<>8__locals" + strconv.Itoa(closureOrdinal)
}

// Lambda names a lambda body method: "<F>b__0_0".
func Lambda(method string, methodOrdinal, lambdaOrdinal, gen int) string {
	return withGeneration("<"+Normalize(method)+">b__"+strconv.Itoa(methodOrdinal)+"_"+strconv.Itoa(lambdaOrdinal), gen)
}

// LambdaCacheField names the delegate cache of a static lambda: "<>9__0_0".
func LambdaCacheField(methodOrdinal, lambdaOrdinal, gen int) string {
	return withGeneration("<>9__"+strconv.Itoa(methodOrdinal)+"_"+strconv.Itoa(lambdaOrdinal), gen)
}

// DynamicContainer names the call-site container of a method: "<>o__0#1".
func DynamicContainer(methodOrdinal, gen int) string {
	return withGeneration("<>o__"+strconv.Itoa(methodOrdinal), gen)
}

// DynamicSite names one call-site field in a container: "<>p__N".
func DynamicSite(n int) string {
	return "<>p__" + strconv.Itoa(n)
}

// AnonymousType names an anonymous type template: "<>f__AnonymousType0".
func AnonymousType(n int) string {
	return "<>f__AnonymousType" + strconv.Itoa(n)
}

// FinallyHelperPrefix starts the name of every iterator finally helper.
const FinallyHelperPrefix = "<>m__Finally"

// FinallyHelper names an iterator finally block helper: "<>m__Finally1".
func FinallyHelper(n int) string {
	return FinallyHelperPrefix + strconv.Itoa(n)
}

// Ordinal extracts the trailing counter of a synthesized name after stripping
// the generation suffix. It understands every counter-bearing form above:
// "<x>5__3", "<>s__2", "<>u__1", "<F>b__0_4", "<>p__0", "<>f__AnonymousType7".
func Ordinal(name string) (int, bool) {
	base, _ := StripGeneration(name)
	if rest, ok := strings.CutPrefix(base, "<>f__AnonymousType"); ok {
		n, err := strconv.Atoi(rest)
		return n, err == nil
	}
	i := strings.LastIndexAny(base, "_")
	if i < 0 || i == len(base)-1 {
		return 0, false
	}
	n, err := strconv.Atoi(base[i+1:])
	if err != nil {
		return 0, false
	}
	return n, true
}

// Kind classifies a synthesized member name by its prefix shape.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindHoistedLocal
	KindHoistedTemp
	KindAwaiter
	KindLambda
	KindDynamicSite
)

// Classify reports the kind of a synthesized member name and the user name it
// embeds, if any.
func Classify(name string) (Kind, string) {
	base, _ := StripGeneration(name)
	switch {
	case strings.HasPrefix(base, "<>s__"):
		return KindHoistedTemp, ""
	case strings.HasPrefix(base, "<>u__"):
		return KindAwaiter, ""
	case strings.HasPrefix(base, "<>p__"):
		return KindDynamicSite, ""
	case strings.HasPrefix(base, "<") && !strings.HasPrefix(base, "<>"):
		end := strings.IndexByte(base, '>')
		if end < 0 {
			return KindUnknown, ""
		}
		user := base[1:end]
		switch {
		case strings.HasPrefix(base[end:], ">5__"):
			return KindHoistedLocal, user
		case strings.HasPrefix(base[end:], ">b__"):
			return KindLambda, user
		}
	}
	return KindUnknown, ""
}

// CacheFieldFor names the delegate cache field of a static lambda from the
// lambda's method name: "<F>b__0_1#2" becomes "<>9__0_1#2".
func CacheFieldFor(lambda string) string {
	_, rest, ok := strings.Cut(lambda, ">b__")
	if !ok {
		return "<>9__" + lambda
	}
	return "<>9__" + rest
}
