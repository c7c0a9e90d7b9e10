// Package apidocs serves the OpenAPI document and the Swagger UI.
package apidocs

import (
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

const SpecPath = "/api-docs/openapi.yaml"

//go:embed openapi.yaml
var spec []byte

// Spec returns the embedded OpenAPI document.
func Spec() []byte { return spec }

// Register mounts the raw document and the UI at /swagger/index.html.
func Register(r gin.IRouter) {
	r.GET(SpecPath, func(c *gin.Context) {
		c.Data(http.StatusOK, "application/yaml; charset=utf-8", spec)
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler,
		ginSwagger.URL(SpecPath),
		ginSwagger.DocExpansion("none"),
	))
}
