package metric

import (
	"context"
	"errors"

	"ecometrics/internal/model"
	"ecometrics/internal/source"
)

// scriptedExec serves queued responses in order, recording every query.
type scriptedExec struct {
	responses []execResponse
	queries   []string
	args      [][]any
}

type execResponse struct {
	cols []string
	rows [][]any
	err  error
}

func (f *scriptedExec) Select(_ context.Context, query string, args ...any) ([]string, [][]any, error) {
	f.queries = append(f.queries, query)
	f.args = append(f.args, args)
	if len(f.responses) == 0 {
		return nil, nil, errors.New("no scripted response left")
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp.cols, resp.rows, resp.err
}

func newSource(exec source.QueryExecutor) *source.RecordSource {
	return source.New(exec, nil, "", nil)
}

func gid(id float64) *model.GroupID {
	g := model.GroupIDFromNumber(id)
	return &g
}
