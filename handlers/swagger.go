package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger serves a small OpenAPI description of the public surface.
// - GET /swagger/index.html  -> Swagger UI page
// - GET /swagger/doc.json    -> OpenAPI JSON, paths rooted at basePath
func RegisterSwagger(rg gin.IRoutes, basePath string) {
	doc := strings.ReplaceAll(swaggerJSON, "{base}", strings.TrimRight(basePath, "/"))

	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>quickauth - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "quickauth", "version": "v0.1.0" },
  "paths": {
    "{base}/sign-in/social/{provider}": {
      "get": { "summary": "Redirect the browser to the provider consent page", "parameters": [{"name":"provider","in":"path","required":true,"schema":{"type":"string"}}], "responses": { "302": { "description": "redirect to provider" }, "404": { "description": "unknown provider" } } }
    },
    "{base}/sign-in/social": {
      "post": { "summary": "Start social sign-in and return the provider URL", "requestBody": { "content": { "application/json": { "schema": {"type":"object","required":["provider"],"properties":{"provider":{"type":"string"},"callbackURL":{"type":"string"}}}}}}, "responses": { "200": { "description": "url and redirect flag" }, "400": { "description": "invalid body" } } }
    },
    "{base}/callback/{provider}": {
      "get": { "summary": "Provider callback", "responses": { "302": { "description": "session issued, or redirect to the error page" }, "400": { "description": "state mismatch" }, "502": { "description": "store unavailable" } } }
    },
    "{base}/get-session": {
      "get": { "summary": "Current session and user, or nulls", "responses": { "200": { "description": "session" } } }
    },
    "{base}/sign-out": {
      "post": { "summary": "Revoke the current session", "responses": { "200": { "description": "signed out" } } }
    },
    "{base}/ok": { "get": { "summary": "Auth router liveness", "responses": { "200": { "description": "ok" } } } },
    "/api/me": {
      "get": { "summary": "Identity for the current session", "responses": { "200": { "description": "user" }, "401": { "description": "unauthenticated" } } }
    },
    "/api/test": { "get": { "summary": "Routing smoke test", "responses": { "200": { "description": "message" } } } },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } }
  }
}`
