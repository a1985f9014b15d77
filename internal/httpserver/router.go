package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	_ "seatshare/docs"
	"seatshare/internal/config"
	"seatshare/internal/domain"
	"seatshare/internal/security"
	"seatshare/internal/service"
	"seatshare/internal/ws"
)

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config        *config.Config
	Log           *zap.Logger
	Hub           *ws.Hub
	Tokens        *security.TokenService
	Users         domain.UserRepository
	Auth          *service.AuthService
	Profiles      *service.UserService
	Listings      *service.ListingService
	Seats         *service.SeatService
	Reviews       *service.ReviewService
	Conversations *service.ConversationService
}

// NewRouter constructs the main HTTP router and wires routes and middleware.
func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	log := d.Log.Named("http")
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	// WebSocket endpoint; long lived, so outside the request timeout.
	r.Get("/ws", ws.MakeHandler(d.Hub, d.Tokens, d.Users, d.Conversations, cfg.CORSOrigins, d.Log))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"message": cfg.AppName, "version": "1.0.0", "docs": "/docs"})
		})

		// Swagger documentation
		if cfg.Docs {
			r.Get("/docs/*", httpSwagger.Handler(
				httpSwagger.URL("/docs/doc.json"), //The url pointing to API definition
			))
		}

		if cfg.AvatarStorage == config.AvatarStorageLocal {
			r.Mount("/uploads", UploadRoutes(cfg.UploadDir))
		}

		// API routes
		r.Route("/api", func(r chi.Router) {
			// Auth routes (no auth required)
			r.Route("/auth", func(r chi.Router) {
				r.Post("/register", handleRegister(d.Auth, log))
				r.Post("/login", handleLogin(d.Auth, log))
			})

			// Authenticated routes
			r.Group(func(r chi.Router) {
				r.Use(AuthMiddleware(d.Tokens, d.Users, log))

				r.Get("/auth/me", handleMe())

				// Users
				r.Route("/users", func(r chi.Router) {
					r.Get("/me", handleMe())
					r.Patch("/me", handleUpdateProfile(d.Profiles, log))
					r.Put("/me/avatar", handleUploadAvatar(d.Profiles, cfg.MaxAvatarBytes, log))
					r.Delete("/me/avatar", handleDeleteAvatar(d.Profiles, log))
					r.Get("/{userID}", handleGetUser(d.Profiles, log))
					r.Get("/{userID}/reviews", handleUserReviews(d.Reviews, log))
				})

				// Listings and the requests made against them
				r.Route("/listings", func(r chi.Router) {
					r.Get("/", handleBrowseListings(d.Listings, log))
					r.Post("/", handleCreateListing(d.Listings, log))
					r.Get("/mine", handleMyListings(d.Listings, log))
					r.Get("/summary", handleOwnerSummary(d.Listings, log))
					r.Get("/{listingID}", handleGetListing(d.Listings, log))
					r.Patch("/{listingID}", handleUpdateListing(d.Listings, log))
					r.Put("/{listingID}/active", handleSetListingActive(d.Listings, log))
					r.Delete("/{listingID}", handleDeleteListing(d.Seats, log))
					r.Post("/{listingID}/requests", handleCreateRequest(d.Seats, log))
					r.Get("/{listingID}/requests", handleListingRequests(d.Seats, log))
				})

				r.Route("/requests", func(r chi.Router) {
					r.Get("/mine", handleMyRequests(d.Seats, log))
					r.Get("/incoming", handleIncomingRequests(d.Seats, log))
					r.Post("/{requestID}/approve", handleApproveRequest(d.Seats, log))
					r.Post("/{requestID}/reject", handleRejectRequest(d.Seats, log))
					r.Post("/{requestID}/leave", handleLeaveSubscription(d.Seats, log))
					r.Delete("/{requestID}", handleWithdrawRequest(d.Seats, log))
				})

				r.Route("/reviews", func(r chi.Router) {
					r.Post("/", handleCreateReview(d.Reviews, log))
					r.Get("/check", handleHasReviewed(d.Reviews, log))
					r.Patch("/{reviewID}", handleUpdateReview(d.Reviews, log))
					r.Delete("/{reviewID}", handleDeleteReview(d.Reviews, log))
				})

				// Conversations and messages
				r.Route("/conversations", func(r chi.Router) {
					r.Post("/", handleCreateConversation(d.Conversations, log))
					r.Get("/", handleListConversations(d.Conversations, log))
					r.Get("/unread", handleUnreadTotal(d.Conversations, log))
					r.Get("/{conversationID}", handleGetConversation(d.Conversations, log))
					r.Post("/{conversationID}/read", handleMarkConversationRead(d.Conversations, log))
					r.Get("/{conversationID}/messages", handleListMessages(d.Conversations, log))
					r.Post("/{conversationID}/messages", handleCreateMessage(d.Conversations, log))
				})
			})
		})
	})

	return r
}
