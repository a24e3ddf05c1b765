package http

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"project_asisten/internal/entities"
	"project_asisten/internal/infrastructure"
	"project_asisten/internal/repository"
	"project_asisten/internal/usecases"
)

// inboundProcessor is what the webhook hands work to. Satisfied by the
// orchestrator; tests swap in a recorder.
type inboundProcessor interface {
	HandleInbound(ctx context.Context, msg entities.InboundMessage)
	HandleStatus(status entities.StatusUpdate)
}

// verifyTokenSource answers whether a handshake token belongs to an active
// channel binding. Satisfied by the agent repository.
type verifyTokenSource interface {
	HasVerifyToken(ctx context.Context, token string) (bool, error)
}

type Handler struct {
	processor     inboundProcessor
	verifyToken   string
	bindingTokens verifyTokenSource
}

func NewHandler(processor inboundProcessor, verifyToken string, bindingTokens verifyTokenSource) *Handler {
	return &Handler{
		processor:     processor,
		verifyToken:   verifyToken,
		bindingTokens: bindingTokens,
	}
}

// VerifyWebhook answers the platform's subscription handshake: echo the
// challenge when the token matches the global secret or any active
// binding's own token, 403 otherwise.
func (h *Handler) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token != "" {
		if token == h.verifyToken {
			c.String(http.StatusOK, challenge)
			return
		}
		if h.bindingTokens != nil {
			ok, err := h.bindingTokens.HasVerifyToken(c.Request.Context(), token)
			if err != nil {
				log.Printf("[WEBHOOK] verify token lookup failed: %v", err)
			}
			if ok {
				c.String(http.StatusOK, challenge)
				return
			}
		}
	}
	c.String(http.StatusForbidden, "verification failed")
}

// ReceiveWebhook acknowledges the delivery immediately and processes it in
// the background. The platform retries slow or failed acks, so nothing
// downstream may delay the 200.
func (h *Handler) ReceiveWebhook(c *gin.Context) {
	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
		return
	}

	if payload.Object != webhookObject {
		// Not a delivery for this subscription. Ack so the platform stops
		// retrying, process nothing.
		log.Printf("[WEBHOOK] ignoring payload with object %q", payload.Object)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	msgs, statuses := normalizePayload(&payload)

	c.JSON(http.StatusOK, gin.H{"status": "received"})

	go func() {
		// The webhook is already acked; a fault here must not take the
		// process down with it.
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[WEBHOOK] processing panicked: %v", r)
			}
		}()
		ctx := context.Background()
		for _, m := range msgs {
			h.processor.HandleInbound(ctx, m)
		}
		for _, s := range statuses {
			h.processor.HandleStatus(s)
		}
	}()
}

// SetupRoutes wires the public webhook surface and the authenticated admin
// API onto the engine.
func SetupRoutes(r *gin.Engine, orchestrator *usecases.Orchestrator, auth *usecases.AuthUsecase,
	agentRepo *repository.AgentRepository, knowledgeRepo *repository.KnowledgeRepository,
	resolver *usecases.TenantResolver, cipher *infrastructure.CredentialCipher,
	verifyToken string, middleware *Middleware) {

	h := NewHandler(orchestrator, verifyToken, agentRepo)
	adminHandler := NewAdminHandler(agentRepo, knowledgeRepo, resolver, cipher)

	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(1 << 20)) // webhook bodies are small
	r.Use(middleware.CORSMiddleware())

	// Public webhook surface
	r.GET("/webhook", h.VerifyWebhook)
	r.POST("/webhook", middleware.SignatureRequired(), h.ReceiveWebhook)

	// Public auth routes
	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/login", func(c *gin.Context) {
			var loginReq struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&loginReq); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			token, err := auth.Login(c.Request.Context(), loginReq.Username, loginReq.Password)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"token": token})
		})

		authGroup.POST("/register", func(c *gin.Context) {
			var regReq struct {
				Username string `json:"username"`
				Password string `json:"password"`
			}
			if err := c.ShouldBindJSON(&regReq); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			if !ValidSlug(regReq.Username) || len(regReq.Password) < 6 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid username or password (min 6 chars)"})
				return
			}
			if err := auth.Register(c.Request.Context(), regReq.Username, regReq.Password); err != nil {
				c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusCreated, gin.H{"status": "registered"})
		})
	}

	// Protected admin API
	api := r.Group("/api")
	api.Use(middleware.AuthRequired())
	api.Use(middleware.RateLimitPerUser(5, 10))
	{
		api.GET("/agents", adminHandler.ListAgents)
		api.POST("/agents", adminHandler.CreateAgent)
		api.GET("/agents/:id", adminHandler.GetAgent)
		api.PUT("/agents/:id", adminHandler.UpdateAgent)

		api.GET("/agents/:id/binding", adminHandler.GetBinding)
		api.POST("/agents/:id/binding", adminHandler.CreateBinding)
		api.PUT("/agents/:id/binding", adminHandler.UpdateBinding)
		api.DELETE("/agents/:id/binding", adminHandler.DeleteBinding)

		api.POST("/agents/:id/knowledge", adminHandler.CreateKnowledge)
		api.DELETE("/agents/:id/knowledge/:kid", adminHandler.DeleteKnowledge)
	}
}
