package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/wordgate/internal/domain"
	"github.com/example/wordgate/internal/storage"
	"github.com/example/wordgate/internal/study"
	syncpkg "github.com/example/wordgate/internal/sync"
)

//go:embed all:static
var staticFiles embed.FS

//go:embed all:templates
var templateFiles embed.FS

// Server is the study surface: the stand-in for the overlay UI plus the
// word-list, settings and source-management pages.
type Server struct {
	db        *storage.DB
	engine    *study.Engine
	reposDir  string
	router    *http.ServeMux
	templates *template.Template
	log       *slog.Logger
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, engine *study.Engine, reposDir string, log *slog.Logger) (*Server, error) {
	tpl, err := template.ParseFS(templateFiles, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		db:        db,
		engine:    engine,
		reposDir:  reposDir,
		router:    http.NewServeMux(),
		templates: tpl,
		log:       log,
	}
	s.routes()
	return s, nil
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		// The static tree is embedded at build time; failing to subtree it
		// is a programming error.
		panic(err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	s.router.Handle("/static/", http.StripPrefix("/static/", fileServer))
	s.router.Handle("/", fileServer)

	// Study flow (htmx partials).
	s.router.HandleFunc("/deck", s.handleGetDeck())
	s.router.HandleFunc("/study/next", s.handleGetNext())
	s.router.HandleFunc("/study/answer/", s.handleShowAnswer())
	s.router.HandleFunc("/study/review/", s.handlePostReview())

	// Gating collaborator: a cheap boolean, polled on app switches.
	s.router.HandleFunc("/availability", s.handleAvailability())

	// Word management.
	s.router.HandleFunc("/words", s.handleWords())
	s.router.HandleFunc("/words/", s.handleWordByID())

	// Policy settings.
	s.router.HandleFunc("/settings", s.handleSettings())

	// Source management.
	s.router.HandleFunc("/sources", s.handleSources())
	s.router.HandleFunc("/sources/", s.handleDeleteSource())
	s.router.HandleFunc("/sync", s.handlePostSync())
}

// deckData aggregates the stats header for the deck view.
type deckData struct {
	Available    bool
	DueNow       int
	NewRemaining int
	NewShown     int
	ReviewShown  int
}

func (s *Server) deckData(ctx context.Context) (deckData, error) {
	available, err := s.engine.HasAvailable(ctx)
	if err != nil {
		return deckData{}, err
	}
	counters, err := s.db.ReadCounters(ctx)
	if err != nil {
		return deckData{}, err
	}
	prefs, err := s.db.ReadPrefs(ctx)
	if err != nil {
		return deckData{}, err
	}
	due, err := s.db.CountDue(ctx, time.Now().UnixMilli())
	if err != nil {
		return deckData{}, err
	}

	newRemaining := prefs.NewPerDay - counters.NewShown
	if newRemaining < 0 {
		newRemaining = 0
	}
	return deckData{
		Available:    available,
		DueNow:       due,
		NewRemaining: newRemaining,
		NewShown:     counters.NewShown,
		ReviewShown:  counters.ReviewShown,
	}, nil
}

// handleGetDeck renders the deck view with the day's stats.
func (s *Server) handleGetDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := s.deckData(r.Context())
		if err != nil {
			s.internalError(w, "deck view", err)
			return
		}
		s.templates.ExecuteTemplate(w, "deck", data)
	}
}

// handleGetNext asks the engine for the next item and renders its front.
// Quota exhaustion renders the "all done" state, not an error.
func (s *Server) handleGetNext() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := s.engine.NextItem(r.Context())
		if err != nil {
			if errors.Is(err, domain.ErrNoAvailableItems) {
				s.templates.ExecuteTemplate(w, "done", nil)
				return
			}
			s.internalError(w, "next item", err)
			return
		}
		s.templates.ExecuteTemplate(w, "card_front", item)
	}
}

// handleShowAnswer renders the back of a card.
func (s *Server) handleShowAnswer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/study/answer/"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid item ID", http.StatusBadRequest)
			return
		}
		item, err := s.db.GetItem(r.Context(), id)
		if err != nil {
			s.internalError(w, "show answer", err)
			return
		}
		if item == nil {
			http.NotFound(w, r)
			return
		}
		s.templates.ExecuteTemplate(w, "card_back", item.Vocab())
	}
}

// handlePostReview grades a card and renders the next one.
func (s *Server) handlePostReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/study/review/"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid item ID", http.StatusBadRequest)
			return
		}
		grade, err := domain.ParseGrade(r.PostFormValue("grade"))
		if err != nil {
			http.Error(w, "Invalid grade", http.StatusBadRequest)
			return
		}

		if err := s.engine.Review(r.Context(), id, grade); err != nil {
			if errors.Is(err, domain.ErrItemNotFound) {
				http.NotFound(w, r)
				return
			}
			s.internalError(w, "review", err)
			return
		}

		// After grading, show the next card.
		s.handleGetNext()(w, r)
	}
}

// handleAvailability reports whether anything is presentable right now.
func (s *Server) handleAvailability() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		available, err := s.engine.HasAvailable(r.Context())
		if err != nil {
			s.internalError(w, "availability", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if available {
			w.Write([]byte(`{"available":true}`))
		} else {
			w.Write([]byte(`{"available":false}`))
		}
	}
}

// wordRow is the word-list view of one item.
type wordRow struct {
	ID             int64
	Word           string
	Translation    string
	IsNew          bool
	CorrectCount   int
	IncorrectCount int
	Due            string
}

func (s *Server) renderWordList(w http.ResponseWriter, ctx context.Context) {
	items, err := s.db.ListItems(ctx)
	if err != nil {
		s.internalError(w, "word list", err)
		return
	}

	rows := make([]wordRow, 0, len(items))
	for _, it := range items {
		row := wordRow{
			ID:             it.ID,
			Word:           it.Word,
			Translation:    it.Translation,
			IsNew:          it.State.IsNew(),
			CorrectCount:   it.State.CorrectCount,
			IncorrectCount: it.State.IncorrectCount,
		}
		if it.State.DueAt > 0 {
			row.Due = time.UnixMilli(it.State.DueAt).Format("2006-01-02 15:04")
		}
		rows = append(rows, row)
	}
	s.templates.ExecuteTemplate(w, "words", map[string]any{"Words": rows})
}

// handleWords lists all vocabulary (GET) or adds a word (POST).
func (s *Server) handleWords() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.renderWordList(w, r.Context())
		case http.MethodPost:
			word := strings.TrimSpace(r.PostFormValue("word"))
			translation := strings.TrimSpace(r.PostFormValue("translation"))
			if word == "" || translation == "" {
				http.Error(w, "Word and translation are required", http.StatusBadRequest)
				return
			}
			if _, err := s.db.InsertItem(r.Context(), word, translation); err != nil {
				s.internalError(w, "add word", err)
				return
			}
			s.renderWordList(w, r.Context())
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// handleWordByID edits (POST) or deletes (DELETE) a single word.
func (s *Server) handleWordByID() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/words/"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid item ID", http.StatusBadRequest)
			return
		}

		switch r.Method {
		case http.MethodPost:
			word := strings.TrimSpace(r.PostFormValue("word"))
			translation := strings.TrimSpace(r.PostFormValue("translation"))
			if word == "" || translation == "" {
				http.Error(w, "Word and translation are required", http.StatusBadRequest)
				return
			}
			if err := s.db.UpdateItemText(r.Context(), id, word, translation); err != nil {
				if errors.Is(err, domain.ErrItemNotFound) {
					http.NotFound(w, r)
					return
				}
				s.internalError(w, "edit word", err)
				return
			}
		case http.MethodDelete:
			if err := s.db.DeleteItem(r.Context(), id); err != nil {
				s.internalError(w, "delete word", err)
				return
			}
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.renderWordList(w, r.Context())
	}
}

// handleSettings renders (GET) or updates (POST) the learning policy.
// Setters clamp out-of-range values instead of rejecting them.
func (s *Server) handleSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if r.Method == http.MethodPost {
			if v, err := strconv.Atoi(r.PostFormValue("new_per_day")); err == nil {
				if err := s.db.SetNewPerDay(ctx, v); err != nil {
					s.internalError(w, "settings", err)
					return
				}
			}
			if v, err := strconv.Atoi(r.PostFormValue("review_per_day")); err == nil {
				if err := s.db.SetReviewPerDay(ctx, v); err != nil {
					s.internalError(w, "settings", err)
					return
				}
			}
			if v, err := strconv.Atoi(r.PostFormValue("overlay_interval")); err == nil {
				if err := s.db.SetOverlayInterval(ctx, v); err != nil {
					s.internalError(w, "settings", err)
					return
				}
			}
			if mode := r.PostFormValue("mix_mode"); mode != "" {
				if err := s.db.SetMixMode(ctx, domain.MixMode(mode)); err != nil {
					s.internalError(w, "settings", err)
					return
				}
			}
			if err := s.db.SetBuryImmediateRepeat(ctx, r.PostFormValue("bury_immediate_repeat") == "on"); err != nil {
				s.internalError(w, "settings", err)
				return
			}
		}

		prefs, err := s.db.ReadPrefs(ctx)
		if err != nil {
			s.internalError(w, "settings", err)
			return
		}
		s.templates.ExecuteTemplate(w, "settings", prefs)
	}
}

// handleSources handles both GET and POST for the sources page.
func (s *Server) handleSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			s.renderSources(w, r.Context(), "sources")
		case http.MethodPost:
			path := strings.TrimSpace(r.PostFormValue("path"))
			if path == "" {
				http.Error(w, "Path cannot be empty", http.StatusBadRequest)
				return
			}
			if _, err := s.db.InsertSource(r.Context(), path, syncpkg.DetectType(path)); err != nil {
				s.internalError(w, "add source", err)
				return
			}
			s.renderSources(w, r.Context(), "source_list")
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// handleDeleteSource deletes a source (and its imported items) and
// re-renders the source list.
func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/sources/"), 10, 64)
		if err != nil {
			http.Error(w, "Invalid source ID", http.StatusBadRequest)
			return
		}
		if err := s.db.DeleteSource(r.Context(), id); err != nil {
			s.internalError(w, "delete source", err)
			return
		}
		s.renderSources(w, r.Context(), "source_list")
	}
}

// handlePostSync triggers a manual sync and re-renders the source list.
func (s *Server) handlePostSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		// Run in the foreground to make the user wait for the result.
		if err := syncpkg.Run(r.Context(), s.db, s.reposDir); err != nil {
			s.internalError(w, "sync", err)
			return
		}

		s.templates.ExecuteTemplate(w, "sync_success", nil)
		s.renderSources(w, r.Context(), "source_list")
	}
}

func (s *Server) renderSources(w http.ResponseWriter, ctx context.Context, tmpl string) {
	sources, err := s.db.GetAllSources(ctx)
	if err != nil {
		s.internalError(w, "sources", err)
		return
	}
	s.templates.ExecuteTemplate(w, tmpl, map[string]any{"Sources": sources})
}

func (s *Server) internalError(w http.ResponseWriter, where string, err error) {
	s.log.Error("handler failed", "where", where, "error", err)
	http.Error(w, "Internal Server Error", http.StatusInternalServerError)
}
