// Package templates renders the obsinspect HTML report. Hand-written in the
// shape quicktemplate's qtc generates from a .qtpl source (the teacher's
// go.mod carries quicktemplate but never exercises it — this gives the
// dependency a concrete, if modest, home) rather than from an actual .qtpl
// file, since nothing downstream of this module runs the qtc code generator.
package templates

import (
	qtio422016 "io"
	"strconv"

	qt422016 "github.com/valyala/quicktemplate"
)

// ReportRow is one node's line in the rendered report.
type ReportRow struct {
	ID           uint64
	Kind         string
	State        string
	Version      uint64
	RootVersion  uint64
	Dependencies []uint64
	Dependents   []uint64
}

func StreamReport(qw422016 *qt422016.Writer, title string, rows []ReportRow) {
	qw422016.N().S(`<!DOCTYPE html><html><head><title>`)
	qw422016.E().S(title)
	qw422016.N().S(`</title><style>
table{border-collapse:collapse;font-family:monospace;font-size:13px}
td,th{border:1px solid #ccc;padding:4px 8px;text-align:left}
</style></head><body><h1>`)
	qw422016.E().S(title)
	qw422016.N().S(`</h1><table><tr><th>id</th><th>kind</th><th>state</th><th>version</th><th>root</th><th>deps</th><th>dependents</th></tr>`)
	for _, r := range rows {
		qw422016.N().S(`<tr><td>`)
		qw422016.N().S(strconv.FormatUint(r.ID, 10))
		qw422016.N().S(`</td><td>`)
		qw422016.E().S(r.Kind)
		qw422016.N().S(`</td><td>`)
		qw422016.E().S(r.State)
		qw422016.N().S(`</td><td>`)
		qw422016.N().S(strconv.FormatUint(r.Version, 10))
		qw422016.N().S(`</td><td>`)
		qw422016.N().S(strconv.FormatUint(r.RootVersion, 10))
		qw422016.N().S(`</td><td>`)
		streamIDList(qw422016, r.Dependencies)
		qw422016.N().S(`</td><td>`)
		streamIDList(qw422016, r.Dependents)
		qw422016.N().S(`</td></tr>`)
	}
	qw422016.N().S(`</table></body></html>`)
}

func streamIDList(qw422016 *qt422016.Writer, ids []uint64) {
	for i, id := range ids {
		if i > 0 {
			qw422016.N().S(`, `)
		}
		qw422016.N().S(strconv.FormatUint(id, 10))
	}
}

func WriteReport(qq422016 qtio422016.Writer, title string, rows []ReportRow) {
	qw422016 := qt422016.AcquireWriter(qq422016)
	StreamReport(qw422016, title, rows)
	qt422016.ReleaseWriter(qw422016)
}

func Report(title string, rows []ReportRow) string {
	qb422016 := qt422016.AcquireByteBuffer()
	WriteReport(qb422016, title, rows)
	qs422016 := string(qb422016.B)
	qt422016.ReleaseByteBuffer(qb422016)
	return qs422016
}
