package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"project_asisten/internal/config"
	"project_asisten/internal/infrastructure"
	"project_asisten/internal/interfaces/http"
	"project_asisten/internal/repository"
	"project_asisten/internal/usecases"
)

func main() {
	cfg, err := config.NewLoadedConfig()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Connect to PostgreSQL
	pgClient, err := infrastructure.NewPostgresClient(cfg.DatabaseURL)
	if err != nil {
		panic("Failed to connect to database: " + err.Error())
	}
	defer pgClient.Close()

	// Initialize Repositories
	userRepo := repository.NewUserRepository(pgClient.Pool)
	agentRepo := repository.NewAgentRepository(pgClient.Pool)
	conversationRepo := repository.NewConversationRepository(pgClient.Pool)
	appointmentRepo := repository.NewAppointmentRepository(pgClient.Pool)
	leadRepo := repository.NewLeadRepository(pgClient.Pool)
	handoffRepo := repository.NewHandoffRepository(pgClient.Pool)
	knowledgeRepo := repository.NewKnowledgeRepository(pgClient.Pool)

	// Initialize Usecases & Services
	authUsecase := usecases.NewAuthUsecase(userRepo, cfg.JwtSecret)
	if err := authUsecase.EnsureAdmin(context.Background(), cfg.AdminUsername, cfg.AdminPassword); err != nil {
		fmt.Println("Warning: Failed to ensure admin user:", err)
	}

	cipher := infrastructure.NewCredentialCipher(cfg.EncryptionKey)
	reasoner := infrastructure.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIModel)
	dispatcher := infrastructure.NewCloudAPIClient(cfg.GraphAPIBase)
	notifier := infrastructure.NewTelegramNotifier(cfg.TelegramToken, cfg.OperatorChatID)
	triggers := infrastructure.NewTriggerPublisher(cfg.TriggerQueueSize)
	defer triggers.Close()

	resolver := usecases.NewTenantResolver(agentRepo)
	states := usecases.NewStateManager(conversationRepo)
	retriever := usecases.NewKnowledgeRetriever(knowledgeRepo)
	decision := usecases.NewDecisionService(reasoner)
	tools := usecases.NewToolEngine(appointmentRepo, leadRepo, handoffRepo, retriever, notifier, triggers)
	composer := usecases.NewComposer()

	orchestrator := usecases.NewOrchestrator(resolver, states, decision, tools, retriever, composer, dispatcher, cipher)

	// Setup HTTP server
	authMiddleware := http.NewMiddleware(cfg.JwtSecret, cfg.AppSecret)
	r := gin.Default()
	http.SetupRoutes(r, orchestrator, authUsecase, agentRepo, knowledgeRepo, resolver, cipher, cfg.VerifyToken, authMiddleware)

	go func() {
		if err := r.Run(cfg.ListenAddr); err != nil {
			fmt.Printf("FAILED to start HTTP Server: %v\n", err)
			os.Exit(1)
		}
	}()
	log.Printf("[MAIN] listening on %s", cfg.ListenAddr)

	// Block until asked to stop; the trigger queue drains on the deferred
	// Close.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("[MAIN] shutting down")
}
