package server

import (
	handler "auction-engine/services/bidding/handler"

	"github.com/gin-gonic/gin"
)

// SetupRouter configures all Gin routes for the application
func SetupRouter(biddingService handler.BiddingServiceInterface) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging

	biddingHandler := handler.NewBiddingHandler(biddingService)
	authenticated := IdentityMiddleware(biddingService)

	bids := router.Group("/bids")
	{
		bids.POST("", authenticated, biddingHandler.RecordBidHandler)
	}

	items := router.Group("/items")
	{
		items.GET("", biddingHandler.ListItemsHandler)
		items.POST("", authenticated, biddingHandler.CreateItemHandler)
		items.GET("/:item_id", biddingHandler.GetItemHandler)
		items.POST("/:item_id/close", authenticated, biddingHandler.CloseItemHandler)
		items.POST("/:item_id/raise", authenticated, biddingHandler.RaiseBidHandler)
		items.GET("/:item_id/bids", biddingHandler.GetBidsByItemHandler)
		items.GET("/:item_id/winning", biddingHandler.GetWinningBidHandler)
	}

	users := router.Group("/users")
	{
		users.POST("", biddingHandler.RegisterUserHandler)
		users.GET("/:user_id/items", biddingHandler.GetItemsByUserHandler)
	}

	admin := router.Group("/admin")
	{
		admin.POST("/sweep", authenticated, biddingHandler.SweepHandler)
	}

	return router
}
