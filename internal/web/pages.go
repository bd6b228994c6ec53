package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bookshare-dev/bookshare/internal/api"
	"github.com/bookshare-dev/bookshare/internal/forms"
	"github.com/bookshare-dev/bookshare/internal/gate"
	"github.com/bookshare-dev/bookshare/internal/pipeline"
	"github.com/bookshare-dev/bookshare/internal/session"
)

const (
	msgFetchFailed  = "Failed to fetch nearby books"
	msgShared       = "Book shared successfully! 📚"
	msgRegistered   = "Account created. Please log in."
	msgLoginFailed  = "Login failed. Please try again."
	msgRegisterFail = "Registration failed. Please try again."
	msgShareFailed  = "Failed to share book. Please try again."
)

// pageData is what every template receives
type pageData struct {
	Title   string
	Session session.Session
	Errors  forms.FieldErrors
	// Alert is a page-level error not tied to a field
	Alert  string
	Notice string
	Form   any

	Books         []api.Book
	FetchError    string
	ShowShareForm bool
}

// page renders whatever the gate decides for the requested path
func (s *Server) page(c *gin.Context) {
	d := s.gate.Resolve(c.Request.URL.Path)
	if d.Redirected() {
		c.Redirect(http.StatusFound, d.Redirect)
		return
	}

	switch d.View {
	case gate.ViewLogin:
		data := pageData{Title: "Login", Session: d.Session, Form: forms.Login{}}
		if c.Query("registered") != "" {
			data.Notice = msgRegistered
		}
		c.HTML(http.StatusOK, "login.html", data)
	case gate.ViewRegister:
		c.HTML(http.StatusOK, "register.html", pageData{Title: "Register", Session: d.Session, Form: forms.Register{}})
	case gate.ViewDashboard:
		data := pageData{Title: "Dashboard", Form: forms.ShareBook{}}
		if c.Query("shared") != "" {
			data.Notice = msgShared
		}
		s.renderDashboard(c, http.StatusOK, data)
	case gate.ViewAdmin:
		c.HTML(http.StatusOK, "admin.html", pageData{Title: "Admin Dashboard", Session: d.Session})
	default:
		s.notFound(c, d.Session)
	}
}

func (s *Server) notFound(c *gin.Context, sess session.Session) {
	c.HTML(http.StatusNotFound, "notfound.html", pageData{Title: "Page not found", Session: sess})
}

// renderDashboard fetches nearby books for the request and renders the dashboard.
// The fetch is scoped to the request, so a client that goes away cancels it.
func (s *Server) renderDashboard(c *gin.Context, status int, data pageData) {
	scope := pipeline.NewScope(c.Request.Context())
	defer scope.Close()

	var fetchErr error
	delivered := pipeline.Run(scope, s.books.NearbyBooks, func(books []api.Book, err error) {
		data.Books, fetchErr = books, err
	})
	if !delivered {
		s.logger.Debug().Msg("Client went away before nearby books arrived")
		c.Abort()
		return
	}

	if fetchErr != nil {
		// A rejected token cleared the session; navigate again so the gate sends us to login
		if errors.Is(fetchErr, api.ErrUnauthorized) {
			if d := s.gate.Resolve(gate.PathRoot); d.Redirected() {
				c.Redirect(http.StatusFound, d.Redirect)
				return
			}
		}
		s.logger.Warn().Err(fetchErr).Msg("Failed to fetch nearby books")
		data.FetchError = api.MessageOf(fetchErr, msgFetchFailed)
	}

	data.Session = s.gate.Resolve(gate.PathRoot).Session
	c.HTML(status, "dashboard.html", data)
}

func (s *Server) login(c *gin.Context) {
	var form forms.Login
	if err := c.ShouldBind(&form); err != nil {
		s.logger.Warn().Err(err).Msg("Invalid login form")
	}

	if err := s.forms.Check(&form); err != nil {
		s.renderForm(c, "login.html", "Login", form, err, msgLoginFailed)
		return
	}

	sess, err := s.auth.Login(c.Request.Context(), form.Email, form.Password)
	if err != nil && !sess.Authenticated() {
		s.renderForm(c, "login.html", "Login", form, err, msgLoginFailed)
		return
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("Session will not survive a restart")
	}

	c.Redirect(http.StatusSeeOther, s.gate.LoginDestination(sess))
}

func (s *Server) register(c *gin.Context) {
	var form forms.Register
	if err := c.ShouldBind(&form); err != nil {
		s.logger.Warn().Err(err).Msg("Invalid registration form")
	}

	if err := s.forms.Check(&form); err != nil {
		s.renderForm(c, "register.html", "Register", form, err, msgRegisterFail)
		return
	}

	req, err := form.Request()
	if err != nil {
		s.renderForm(c, "register.html", "Register", form, err, msgRegisterFail)
		return
	}

	if err := s.auth.Register(c.Request.Context(), req); err != nil {
		s.renderForm(c, "register.html", "Register", form, err, msgRegisterFail)
		return
	}

	c.Redirect(http.StatusSeeOther, gate.PathLogin+"?registered=1")
}

// renderForm re-renders a form page with the error of a failed submission
func (s *Server) renderForm(c *gin.Context, name, title string, form any, err error, fallback string) {
	data := pageData{Title: title, Session: s.auth.Session(), Form: form}

	var fieldErrs forms.FieldErrors
	switch {
	case errors.As(err, &fieldErrs):
		data.Errors = fieldErrs
	case forms.FromAPI(err) != nil:
		data.Errors = forms.FromAPI(err)
	default:
		s.logger.Error().Err(err).Str("form", name).Msg("Form submission failed")
		data.Alert = fallback
	}

	c.HTML(http.StatusUnprocessableEntity, name, data)
}

func (s *Server) shareBook(c *gin.Context) {
	d := s.gate.Resolve(gate.PathRoot)
	if d.Redirected() {
		c.Redirect(http.StatusSeeOther, d.Redirect)
		return
	}

	var form forms.ShareBook
	if err := c.ShouldBind(&form); err != nil {
		s.logger.Warn().Err(err).Msg("Invalid share form")
	}

	checkErr := s.forms.Check(&form)
	data := pageData{Title: "Dashboard", Form: form, ShowShareForm: true}

	if checkErr != nil {
		if !errors.As(checkErr, &data.Errors) {
			data.Alert = msgShareFailed
		}
		s.renderDashboard(c, http.StatusUnprocessableEntity, data)
		return
	}

	if err := s.books.ShareBook(c.Request.Context(), form.Request()); err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			c.Redirect(http.StatusSeeOther, gate.PathLogin)
			return
		}
		if fe := forms.FromAPI(err); fe != nil {
			data.Errors = fe
		} else {
			s.logger.Error().Err(err).Msg("Failed to share book")
			data.Alert = msgShareFailed
		}
		s.renderDashboard(c, http.StatusUnprocessableEntity, data)
		return
	}

	s.logger.Info().Str("title", form.Title).Msg("Book shared")
	c.Redirect(http.StatusSeeOther, gate.PathRoot+"?shared=1")
}

func (s *Server) logout(c *gin.Context) {
	if err := s.auth.Logout(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to remove stored session")
	}
	c.Redirect(http.StatusSeeOther, gate.PathLogin)
}
