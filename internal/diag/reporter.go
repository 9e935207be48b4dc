package diag

// Reporter receives diagnostics as validation finds them.
type Reporter interface {
	Report(d Diagnostic)
}

// ReportBuilder accumulates notes before a diagnostic is reported.
type ReportBuilder struct {
	reporter Reporter
	diag     Diagnostic
	emitted  bool
}

// ReportError starts an error diagnostic bound for r.
func ReportError(r Reporter, code Code, primary Subject, msg string) *ReportBuilder {
	return &ReportBuilder{reporter: r, diag: NewError(code, primary, msg)}
}

// WithNote appends a note.
func (b *ReportBuilder) WithNote(s Subject, msg string) *ReportBuilder {
	if b != nil {
		b.diag = b.diag.WithNote(s, msg)
	}
	return b
}

// Emit reports the diagnostic once; later calls do nothing.
func (b *ReportBuilder) Emit() {
	if b == nil || b.emitted {
		return
	}
	b.emitted = true
	if b.reporter != nil {
		b.reporter.Report(b.diag)
	}
}

// BagReporter adds to a Bag.
type BagReporter struct{ Bag *Bag }

func (r BagReporter) Report(d Diagnostic) {
	if r.Bag != nil {
		r.Bag.Add(d)
	}
}

type dedupKey struct {
	code    Code
	subject Subject
	msg     string
}

// DedupReporter drops a diagnostic already reported with the same code,
// subject and message. Two edits hitting the same missing container report
// it once.
type DedupReporter struct {
	next Reporter
	seen map[dedupKey]struct{}
}

func NewDedupReporter(next Reporter) *DedupReporter {
	return &DedupReporter{next: next, seen: make(map[dedupKey]struct{})}
}

func (r *DedupReporter) Report(d Diagnostic) {
	key := dedupKey{code: d.Code, subject: d.Primary, msg: d.Message}
	if _, ok := r.seen[key]; ok {
		return
	}
	r.seen[key] = struct{}{}
	if r.next != nil {
		r.next.Report(d)
	}
}
