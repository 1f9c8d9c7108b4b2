package router

import "github.com/gin-gonic/gin"

// Module is a feature slice that registers its routes on a RouterGroup.
// Modules receive their dependencies at construction and never reach into the container.
type Module interface {
	Register(rg *gin.RouterGroup)
}
