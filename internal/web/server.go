package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmorgan81/visualizer/internal/batch"
	"github.com/dmorgan81/visualizer/internal/handler"
	"github.com/dmorgan81/visualizer/internal/log"
	"github.com/dmorgan81/visualizer/internal/notify"
	"github.com/dmorgan81/visualizer/internal/page"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/samber/do"
	"github.com/samber/lo"
)

type Server struct {
	handler   *handler.Handler
	templator *page.Templator
	router    *gin.Engine
}

func New(h *handler.Handler, t *page.Templator) *Server {
	s := &Server{handler: h, templator: t}
	s.router = s.routes()
	return s
}

func NewServer(i *do.Injector) (*Server, error) {
	return New(do.MustInvoke[*handler.Handler](i), do.MustInvoke[*page.Templator](i)), nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/", s.index)
	r.POST("/", s.submit)

	api := r.Group("/api")
	api.POST("/generate", s.generate)
	api.POST("/generate/stream", s.stream)
	return r
}

// requestLogger puts the base logger into each request context so handlers
// can derive from it.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		logger := log.FromContextOrDiscard(ctx).With("method", c.Request.Method, "path", c.Request.URL.Path)
		c.Request = c.Request.WithContext(log.NewContext(ctx, logger))
		c.Next()
		logger.Info("served request", "status", c.Writer.Status())
	}
}

func (s *Server) index(c *gin.Context) {
	s.render(c, http.StatusOK, page.Params{})
}

func (s *Server) submit(c *gin.Context) {
	var input handler.Input
	if err := c.ShouldBind(&input); err != nil {
		s.render(c, http.StatusBadRequest, page.Params{
			Input:  input,
			Events: []notify.Event{{Kind: notify.KindWarning, Message: bindMessage(err)}},
		})
		return
	}

	rec := &notify.Recorder{}
	out, err := s.handler.Run(notify.NewContext(c.Request.Context(), rec), input)
	params := page.Params{Input: input, Events: rec.Events()}
	if err != nil {
		s.render(c, statusFor(err), params)
		return
	}
	params.Output = &out
	s.render(c, http.StatusOK, params)
}

func (s *Server) render(c *gin.Context, status int, params page.Params) {
	html, err := s.templator.Template(c.Request.Context(), params)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.Data(status, "text/html; charset=utf-8", html)
}

func (s *Server) generate(c *gin.Context) {
	var input handler.Input
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": bindCode(err), "error": bindMessage(err)})
		return
	}

	out, err := s.handler.Handle(c.Request.Context(), input)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"code": codeFor(err), "error": err.Error(), "events": out.Events})
		return
	}
	c.JSON(http.StatusOK, out)
}

// stream sends every notice as a server-sent event while the batch runs,
// then a final "done" (or "failed") event.
func (s *Server) stream(c *gin.Context) {
	var input handler.Input
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": bindCode(err), "error": bindMessage(err)})
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	send := func(event string, data any) {
		c.SSEvent(event, data)
		c.Writer.Flush()
	}
	ctx := notify.NewContext(c.Request.Context(), notify.NotifierFunc(func(e notify.Event) {
		send(string(e.Kind), e)
	}))

	out, err := s.handler.Run(ctx, input)
	if err != nil {
		send("failed", gin.H{"code": codeFor(err), "error": err.Error()})
		return
	}
	send("done", out)
}

func codeFor(err error) batch.Code {
	var herr *handler.Error
	if errors.As(err, &herr) {
		return herr.Code
	}
	return batch.CodeOf(err)
}

func statusFor(err error) int {
	return lo.Ternary(codeFor(err) == batch.CodeMissingCredential, http.StatusServiceUnavailable, http.StatusBadRequest)
}

const codeInvalidRequest batch.Code = "invalid_request"

func bindCode(err error) batch.Code {
	var verrs validator.ValidationErrors
	return lo.Ternary(errors.As(err, &verrs), batch.CodeInvalidCount, codeInvalidRequest)
}

func bindMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request: " + err.Error()
	}
	return strings.Join(lo.Map(verrs, func(fe validator.FieldError, _ int) string {
		return fieldMessage(fe)
	}), " ")
}

func fieldMessage(fe validator.FieldError) string {
	if fe.Field() == "Count" {
		return fmt.Sprintf("Number of images must be between %d and %d.", batch.MinCount, batch.MaxCount)
	}
	return fmt.Sprintf("%s failed %s validation.", fe.Field(), fe.Tag())
}
