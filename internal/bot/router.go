package bot

import (
	"log/slog"
	"strings"
	"sync"
	"unicode"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/vitrine-bot/internal/bot/handlers"
	"github.com/Proton-105/vitrine-bot/internal/bot/keyboard"
)

// Router dispatches commands, callbacks, and state-aware updates.
type Router struct {
	mu             sync.RWMutex
	commands       map[string]handlers.Handler
	callbacks      map[string]handlers.CallbackHandler
	dispatcher     *Dispatcher
	defaultHandler handlers.Handler
	middlewares    []handlers.Middleware
	log            *slog.Logger
}

// NewRouter builds a Router with empty registries.
func NewRouter(dispatcher *Dispatcher, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		commands:    make(map[string]handlers.Handler),
		callbacks:   make(map[string]handlers.CallbackHandler),
		dispatcher:  dispatcher,
		middlewares: make([]handlers.Middleware, 0),
		log:         log,
	}
}

// RegisterCommand registers a handler for a bot command.
func (r *Router) RegisterCommand(cmd string, h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[cmd] = h
}

// RegisterCallback registers a handler for a callback identifier, the part
// of the callback data before the first separator.
func (r *Router) RegisterCallback(unique string, h handlers.CallbackHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbacks[unique] = h
}

// Use appends a middleware to the chain. The first registered middleware runs outermost.
func (r *Router) Use(mw handlers.Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw)
}

// SetDefault sets the fallback handler for unmatched commands, callbacks or states.
func (r *Router) SetDefault(h handlers.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultHandler = h
}

// Route runs the middleware chain around handler resolution, so that the
// session state is read only once the update reaches the front of its queue.
func (r *Router) Route(c telebot.Context) error {
	if c == nil {
		return nil
	}

	wrapped := r.applyMiddlewares(r.resolve)
	if wrapped == nil {
		return nil
	}
	return wrapped(c)
}

func (r *Router) resolve(c telebot.Context) error {
	if callback := c.Callback(); callback != nil {
		return r.handleCallback(c, callback.Data)
	}

	return r.handleMessage(c)
}

func (r *Router) handleCallback(c telebot.Context, data string) error {
	unique, _, err := keyboard.DecodeCallback(data)
	if err == nil {
		if handler := r.getCallbackHandler(unique); handler != nil {
			return handler(c)
		}
	}

	r.log.Info("no callback handler found", "data", data)
	return r.runDefault(c)
}

func (r *Router) handleMessage(c telebot.Context) error {
	text := strings.TrimSpace(c.Text())

	if strings.HasPrefix(text, "/") {
		if handler := r.getCommandHandler(commandName(text)); handler != nil {
			return handler(c)
		}
		return r.runDefault(c)
	}

	if r.dispatcher != nil {
		handled, err := r.dispatcher.Dispatch(c)
		if err != nil || handled {
			return err
		}
	}

	return r.runDefault(c)
}

func (r *Router) runDefault(c telebot.Context) error {
	if handler := r.getDefaultHandler(); handler != nil {
		return handler(c)
	}
	return nil
}

// commandName strips arguments and the @botname suffix.
func commandName(text string) string {
	name := text
	if idx := strings.IndexFunc(text, unicode.IsSpace); idx != -1 {
		name = text[:idx]
	}
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name)
}

func (r *Router) getCallbackHandler(unique string) handlers.CallbackHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbacks[unique]
}

func (r *Router) getCommandHandler(cmd string) handlers.Handler {
	r.mu.RLock()
	handler := r.commands[cmd]
	r.mu.RUnlock()
	return handler
}

func (r *Router) getDefaultHandler() handlers.Handler {
	r.mu.RLock()
	handler := r.defaultHandler
	r.mu.RUnlock()
	return handler
}

// applyMiddlewares wraps the handler with all registered middlewares.
func (r *Router) applyMiddlewares(h handlers.Handler) handlers.Handler {
	if h == nil {
		return nil
	}

	middlewares := r.middlewaresSnapshot()
	wrapped := h
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}

	return wrapped
}

func (r *Router) middlewaresSnapshot() []handlers.Middleware {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.middlewares) == 0 {
		return nil
	}

	snapshot := make([]handlers.Middleware, len(r.middlewares))
	copy(snapshot, r.middlewares)
	return snapshot
}
