package page

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/base64"
	"html/template"
	"sync"

	"github.com/dmorgan81/visualizer/internal/batch"
	"github.com/dmorgan81/visualizer/internal/handler"
	"github.com/dmorgan81/visualizer/internal/log"
	"github.com/dmorgan81/visualizer/internal/notify"
	"github.com/samber/do"
	"github.com/samber/lo"
)

//go:embed assets/index.html
var indexTmpl string

type Params struct {
	Input  handler.Input
	Output *handler.Output
	Events []notify.Event
}

type Templator struct {
	tmpl *template.Template
	once sync.Once
}

func NewTemplator(*do.Injector) (*Templator, error) {
	return &Templator{}, nil
}

func (g *Templator) Template(ctx context.Context, params Params) ([]byte, error) {
	g.once.Do(func() {
		g.tmpl = template.Must(template.New("index").Funcs(template.FuncMap{
			"dataURL": dataURL,
			"counts":  func() []int { return lo.RangeFrom(batch.MinCount, batch.MaxCount-batch.MinCount+1) },
			"visible": visible,
		}).Parse(indexTmpl))
	})

	log := log.FromContextOrDiscard(ctx).WithGroup("templator")
	log.Info("generating page")

	if params.Input.Count == 0 {
		params.Input.Count = batch.MinCount
	}

	var data bytes.Buffer
	if err := g.tmpl.Execute(&data, params); err != nil {
		return nil, err
	}
	return data.Bytes(), nil
}

func dataURL(img handler.Image) template.URL {
	return template.URL("data:" + img.ContentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data))
}

// visible drops progress events; the page shows the final state only.
func visible(events []notify.Event) []notify.Event {
	return lo.Filter(events, func(e notify.Event, _ int) bool {
		return e.Kind != notify.KindProgress
	})
}
