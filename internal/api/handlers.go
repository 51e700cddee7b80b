package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"crypto-portfolio-tracker/internal/audit"
	"crypto-portfolio-tracker/internal/auth"
	"crypto-portfolio-tracker/internal/errs"
	"crypto-portfolio-tracker/internal/market"
	"crypto-portfolio-tracker/internal/models"
	"crypto-portfolio-tracker/internal/portfolio"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const defaultUnownedLimit = 100

// fail maps domain errors to status codes. Unexpected errors are logged and
// hidden from the caller.
func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, errs.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "already exists"})
	case errors.Is(err, errs.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, errs.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		s.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func (s *Server) audit(c *gin.Context, eventType, username, status, message string) {
	event := &models.AuditEvent{
		EventType:    eventType,
		Username:     username,
		IPAddress:    c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
		Status:       status,
		ErrorMessage: message,
	}
	if err := s.svc.Audit.Record(c.Request.Context(), event); err != nil {
		s.logger.Error("Failed to write audit event", zap.String("event", eventType), zap.Error(err))
	}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	user, err := s.svc.Auth.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		s.audit(c, audit.EventRegister, req.Username, audit.StatusFailure, err.Error())
		s.fail(c, err)
		return
	}
	s.audit(c, audit.EventRegister, req.Username, audit.StatusSuccess, "")
	c.JSON(http.StatusCreated, user)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	token, user, err := s.svc.Auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		s.audit(c, audit.EventLogin, req.Username, audit.StatusFailure, err.Error())
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		s.fail(c, err)
		return
	}
	s.audit(c, audit.EventLogin, req.Username, audit.StatusSuccess, "")
	c.JSON(http.StatusOK, gin.H{"access_token": token, "user": user})
}

func (s *Server) closeAccount(c *gin.Context) {
	username := c.GetString(auth.ContextUsername)
	if err := s.svc.Auth.CloseAccount(c.Request.Context(), auth.UserID(c)); err != nil {
		s.audit(c, audit.EventClose, username, audit.StatusFailure, err.Error())
		s.fail(c, err)
		return
	}
	s.audit(c, audit.EventClose, username, audit.StatusSuccess, "")
	c.Status(http.StatusNoContent)
}

func (s *Server) getPortfolio(c *gin.Context) {
	v, err := s.svc.Portfolio.Valuation(c.Request.Context(), auth.UserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) getSummary(c *gin.Context) {
	summary, err := s.svc.Portfolio.Summary(c.Request.Context(), auth.UserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) getUnowned(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultUnownedLimit)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	ctx := c.Request.Context()
	assets, err := s.svc.Assets.ListAssets(ctx, auth.UserID(c), portfolio.AssetFilter{})
	if err != nil {
		s.fail(c, err)
		return
	}
	snapshot, err := s.svc.Market.Snapshot(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"coins": market.Unowned(snapshot, assets, limit)})
}

func (s *Server) getMovers(c *gin.Context) {
	userID := auth.UserID(c)
	assets, err := s.svc.Assets.ListAssets(c.Request.Context(), userID, portfolio.AssetFilter{})
	if err != nil {
		s.fail(c, err)
		return
	}

	gainers, losers := s.svc.Market.GainersLosers(c.Request.Context(), userID, coinIDs(assets))
	c.JSON(http.StatusOK, gin.H{"gainers": gainers, "losers": losers})
}

func (s *Server) getOutliers(c *gin.Context) {
	userID := auth.UserID(c)
	assets, err := s.svc.Assets.ListAssets(c.Request.Context(), userID, portfolio.AssetFilter{})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.svc.Market.Outliers(c.Request.Context(), userID, coinIDs(assets)))
}

func coinIDs(assets []models.Asset) []string {
	ids := make([]string, 0, len(assets))
	for _, a := range assets {
		ids = append(ids, market.CoinID(a.Name))
	}
	return ids
}

func (s *Server) listAssets(c *gin.Context) {
	filter := portfolio.AssetFilter{Query: c.Query("query"), Letter: c.Query("letter")}
	if _, ok := c.GetQuery("letter"); ok && filter.Letter == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "letter must be a single letter"})
		return
	}
	assets, err := s.svc.Assets.ListAssets(c.Request.Context(), auth.UserID(c), filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, assets)
}

type assetRequest struct {
	Name   string  `json:"name" binding:"required"`
	Symbol string  `json:"symbol" binding:"required"`
	Amount float64 `json:"amount" binding:"gte=0"`
}

func (s *Server) addAsset(c *gin.Context) {
	var req assetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	asset := &models.Asset{UserID: auth.UserID(c), Name: req.Name, Symbol: req.Symbol, Amount: req.Amount}
	if err := s.svc.Assets.AddAsset(c.Request.Context(), asset); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, asset)
}

type amountRequest struct {
	Amount *float64 `json:"amount" binding:"required,gte=0"`
}

func (s *Server) updateAsset(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	asset, err := s.svc.Assets.UpdateAmount(c.Request.Context(), auth.UserID(c), id, *req.Amount)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, asset)
}

func (s *Server) deleteAsset(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := s.svc.Assets.DeleteAsset(c.Request.Context(), auth.UserID(c), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listTransactions(c *gin.Context) {
	txs, err := s.svc.Assets.ListTransactions(c.Request.Context(), auth.UserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

type transactionRequest struct {
	Name          string    `json:"name" binding:"required"`
	Symbol        string    `json:"symbol" binding:"required"`
	Date          time.Time `json:"transaction_date"`
	Amount        float64   `json:"amount" binding:"gt=0"`
	Price         float64   `json:"price" binding:"gte=0"`
	TransactionID string    `json:"transaction_id"`
}

func (s *Server) addTransaction(c *gin.Context) {
	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	tx := &models.Transaction{
		UserID:     auth.UserID(c),
		Name:       req.Name,
		Symbol:     req.Symbol,
		Date:       req.Date,
		Amount:     req.Amount,
		Price:      req.Price,
		ExternalID: req.TransactionID,
	}
	if err := s.svc.Assets.AddTransaction(c.Request.Context(), tx); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, tx)
}

func (s *Server) getMarket(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
		return
	}
	perPage, err := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if err != nil || perPage < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid per_page"})
		return
	}

	snapshot, err := s.svc.Market.Snapshot(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, market.Search(snapshot, c.Query("search"), page, perPage))
}

func (s *Server) listAlerts(c *gin.Context) {
	list, err := s.svc.Alerts.ListAlerts(c.Request.Context(), auth.UserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type alertRequest struct {
	Name           string  `json:"name" binding:"required"`
	Cryptocurrency string  `json:"cryptocurrency"`
	AlertType      string  `json:"alert_type" binding:"required,oneof=more less"`
	Threshold      float64 `json:"threshold" binding:"gt=0"`
}

func (s *Server) createAlert(c *gin.Context) {
	var req alertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	alert := &models.Alert{
		UserID:    auth.UserID(c),
		Name:      req.Name,
		Symbol:    req.Cryptocurrency,
		Type:      req.AlertType,
		Threshold: req.Threshold,
	}
	if err := s.svc.Alerts.CreateAlert(c.Request.Context(), alert); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, alert)
}

func (s *Server) getAlert(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	alert, err := s.svc.Alerts.GetAlert(c.Request.Context(), auth.UserID(c), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

func (s *Server) deleteAlert(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := s.svc.Alerts.DeleteAlert(c.Request.Context(), auth.UserID(c), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listNotifications(c *gin.Context) {
	unreadOnly := c.Query("unread") == "true"
	list, err := s.svc.Alerts.ListNotifications(c.Request.Context(), auth.UserID(c), unreadOnly)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) unreadCount(c *gin.Context) {
	count, err := s.svc.Alerts.UnreadCount(c.Request.Context(), auth.UserID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (s *Server) markRead(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := s.svc.Alerts.MarkRead(c.Request.Context(), auth.UserID(c), id); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listUsers(c *gin.Context) {
	users, err := s.svc.Auth.ListUsers(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) listAudit(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	events, err := s.svc.Audit.Recent(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}
