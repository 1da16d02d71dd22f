package approuters

import (
	"Murmur/internal/configuration"

	"github.com/gin-gonic/gin"
)

func ChatRouters(router *gin.Engine, container *configuration.Container) {
	chatRoute := router.Group("/mm/api/chat")
	chatRoute.Use(RequireAuth(container.Verifier))
	{
		chatRoute.GET("/users", container.ChatHandler.ListUsers)
		chatRoute.GET("/users/me", container.ChatHandler.GetProfile)
		chatRoute.PUT("/users/profile", container.ChatHandler.UpdateProfile)
		chatRoute.GET("/conversations", container.ChatHandler.ListConversations)
		chatRoute.POST("/conversations", container.ChatHandler.OpenConversation)
		chatRoute.GET("/conversations/:conversationId/messages", container.ChatHandler.GetHistory)
	}
}
