package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"project_asisten/internal/entities"
	"project_asisten/internal/infrastructure"
	"project_asisten/internal/repository"
	"project_asisten/internal/usecases"
)

// AdminHandler owns the tenant management surface: agents, their channel
// bindings and their knowledge base.
type AdminHandler struct {
	agentRepo     *repository.AgentRepository
	knowledgeRepo *repository.KnowledgeRepository
	resolver      *usecases.TenantResolver
	cipher        *infrastructure.CredentialCipher
}

func NewAdminHandler(agentRepo *repository.AgentRepository, knowledgeRepo *repository.KnowledgeRepository,
	resolver *usecases.TenantResolver, cipher *infrastructure.CredentialCipher) *AdminHandler {
	return &AdminHandler{
		agentRepo:     agentRepo,
		knowledgeRepo: knowledgeRepo,
		resolver:      resolver,
		cipher:        cipher,
	}
}

func currentUserID(c *gin.Context) int {
	v, ok := c.Get("user_id")
	if !ok {
		return 0
	}
	f, ok := v.(float64) // JWT numbers decode as float64
	if !ok {
		return 0
	}
	return int(f)
}

func isAdmin(c *gin.Context) bool {
	role, _ := c.Get("role")
	return role == "admin"
}

// ownedAgent loads the :id agent and enforces ownership. Writes the error
// response itself; callers just bail on !ok.
func (h *AdminHandler) ownedAgent(c *gin.Context) (*entities.Agent, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid agent id"})
		return nil, false
	}
	agent, err := h.agentRepo.GetAgent(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return nil, false
	}
	if agent == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		return nil, false
	}
	if agent.OwnerUserID != currentUserID(c) && !isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your agent"})
		return nil, false
	}
	return agent, true
}

type agentRequest struct {
	Name         string   `json:"name"`
	Tone         string   `json:"tone"`
	Language     string   `json:"language"`
	SystemPrompt string   `json:"system_prompt"`
	Capabilities []string `json:"capabilities"`
	BusinessName string   `json:"business_name"`
	BusinessInfo string   `json:"business_info"`
	TriggerURL   string   `json:"trigger_url"`
	OpenHour     int      `json:"open_hour"`
	CloseHour    int      `json:"close_hour"`
	SlotMinutes  int      `json:"slot_minutes"`
	ClosedDay    *int     `json:"closed_day"`
	Status       string   `json:"status"`
}

func (req *agentRequest) apply(a *entities.Agent) {
	a.Name = SanitizeString(req.Name)
	a.Tone = req.Tone
	a.Language = req.Language
	a.SystemPrompt = SanitizeString(req.SystemPrompt)
	a.Capabilities = req.Capabilities
	a.BusinessName = SanitizeString(req.BusinessName)
	a.BusinessInfo = SanitizeString(req.BusinessInfo)
	a.TriggerURL = req.TriggerURL
	a.OpenHour = req.OpenHour
	a.CloseHour = req.CloseHour
	a.SlotMinutes = req.SlotMinutes
	if req.ClosedDay != nil {
		a.ClosedDay = *req.ClosedDay
	} else {
		a.ClosedDay = -1
	}
	if req.Status != "" {
		a.Status = req.Status
	}
}

func (h *AdminHandler) ListAgents(c *gin.Context) {
	agents, err := h.agentRepo.ListAgentsByOwner(c.Request.Context(), currentUserID(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

func (h *AdminHandler) CreateAgent(c *gin.Context) {
	var req agentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	agent := &entities.Agent{
		OwnerUserID: currentUserID(c),
		Status:      entities.AgentActive,
	}
	req.apply(agent)

	if err := h.agentRepo.CreateAgent(c.Request.Context(), agent); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, agent)
}

func (h *AdminHandler) GetAgent(c *gin.Context) {
	agent, ok := h.ownedAgent(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, agent)
}

func (h *AdminHandler) UpdateAgent(c *gin.Context) {
	agent, ok := h.ownedAgent(c)
	if !ok {
		return
	}
	var req agentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	req.apply(agent)

	if err := h.agentRepo.UpdateAgent(c.Request.Context(), agent); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	// Resolver entries carry the old persona and status until evicted.
	h.resolver.Invalidate(agent.ID)
	c.JSON(http.StatusOK, agent)
}

type bindingRequest struct {
	PhoneNumberID string `json:"phone_number_id"`
	PhoneNumber   string `json:"phone_number"`
	AccessToken   string `json:"access_token"`
	VerifyToken   string `json:"verify_token"`
	AppSecret     string `json:"app_secret"`
	Status        string `json:"status"`
}

func (h *AdminHandler) GetBinding(c *gin.Context) {
	agent, ok := h.ownedAgent(c)
	if !ok {
		return
	}
	binding, err := h.agentRepo.GetBindingByAgentID(c.Request.Context(), agent.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	if binding == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no binding"})
		return
	}
	c.JSON(http.StatusOK, binding)
}

func (h *AdminHandler) CreateBinding(c *gin.Context) {
	agent, ok := h.ownedAgent(c)
	if !ok {
		return
	}
	var req bindingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.PhoneNumberID == "" || req.AccessToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone_number_id and access_token are required"})
		return
	}

	// Tokens are sealed before they touch the database.
	sealed, err := h.cipher.Encrypt(req.AccessToken)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "credential sealing failed"})
		return
	}

	binding := &entities.ChannelBinding{
		AgentID:       agent.ID,
		PhoneNumberID: req.PhoneNumberID,
		PhoneNumber:   req.PhoneNumber,
		AccessToken:   sealed,
		VerifyToken:   req.VerifyToken,
		AppSecret:     req.AppSecret,
		Status:        entities.AgentActive,
	}
	if err := h.agentRepo.CreateBinding(c.Request.Context(), binding); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "binding exists or channel already claimed"})
		return
	}
	h.resolver.Invalidate(agent.ID)
	c.JSON(http.StatusCreated, binding)
}

func (h *AdminHandler) UpdateBinding(c *gin.Context) {
	agent, ok := h.ownedAgent(c)
	if !ok {
		return
	}
	binding, err := h.agentRepo.GetBindingByAgentID(c.Request.Context(), agent.ID)
	if err != nil || binding == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no binding"})
		return
	}

	var req bindingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.PhoneNumber != "" {
		binding.PhoneNumber = req.PhoneNumber
	}
	if req.AccessToken != "" {
		sealed, err := h.cipher.Encrypt(req.AccessToken)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "credential sealing failed"})
			return
		}
		binding.AccessToken = sealed
	}
	if req.VerifyToken != "" {
		binding.VerifyToken = req.VerifyToken
	}
	if req.AppSecret != "" {
		binding.AppSecret = req.AppSecret
	}
	if req.Status != "" {
		binding.Status = req.Status
	}

	if err := h.agentRepo.UpdateBinding(c.Request.Context(), binding); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	h.resolver.Invalidate(agent.ID)
	c.JSON(http.StatusOK, binding)
}

func (h *AdminHandler) DeleteBinding(c *gin.Context) {
	agent, ok := h.ownedAgent(c)
	if !ok {
		return
	}
	binding, err := h.agentRepo.GetBindingByAgentID(c.Request.Context(), agent.ID)
	if err != nil || binding == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no binding"})
		return
	}
	if err := h.agentRepo.DeleteBinding(c.Request.Context(), binding.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	h.resolver.Invalidate(agent.ID)
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

type knowledgeRequest struct {
	Title       string `json:"title"`
	Section     string `json:"section"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

func (h *AdminHandler) CreateKnowledge(c *gin.Context) {
	agent, ok := h.ownedAgent(c)
	if !ok {
		return
	}
	var req knowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.Title == "" || req.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and content are required"})
		return
	}

	entry := &entities.KnowledgeEntry{
		AgentID:     agent.ID,
		Title:       TruncateString(SanitizeString(req.Title), MaxTitleLength),
		Section:     SanitizeString(req.Section),
		ContentType: req.ContentType,
		Content:     TruncateString(SanitizeString(req.Content), MaxContentLength),
	}
	if err := h.knowledgeRepo.Create(c.Request.Context(), entry); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *AdminHandler) DeleteKnowledge(c *gin.Context) {
	agent, ok := h.ownedAgent(c)
	if !ok {
		return
	}
	kid, err := strconv.Atoi(c.Param("kid"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid entry id"})
		return
	}
	if err := h.knowledgeRepo.Delete(c.Request.Context(), agent.ID, kid); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
