package handler

import (
	"github.com/gofiber/fiber/v2"

	"taxdocs/internal/http/middleware"
	"taxdocs/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Every document route requires a bearer token; the admin listing additionally requires the admin role.
func RegisterRoutes(app *fiber.App, db Pinger, docSvc service.DocumentService, verifier middleware.TokenVerifier) {
	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	requireAuth := middleware.RequireAuth(verifier)

	docs := app.Group("/documents", requireAuth)
	docs.Post("/upload", UploadDocument(docSvc))
	docs.Get("/my-documents", ListMyDocuments(docSvc))
	docs.Get("/download/:id", DownloadDocument(docSvc))
	docs.Delete("/:id", DeleteDocument(docSvc))

	admin := app.Group("/admin", requireAuth, middleware.RequireAdmin())
	admin.Get("/documents", AdminListDocuments(docSvc))
}
