package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	app "wadserv/src/app"
	"wadserv/src/auth"
	cfg "wadserv/src/configuration"
	db "wadserv/src/repository"
)

const (
	defaultPage  = 1
	defaultLimit = 5
	maxLimit     = 100
)

type (
	AppHandler struct {
		store    db.Store
		verifier *auth.Verifier
		issuer   *auth.Issuer
		images   *app.ProfileImages
		logger   *zap.Logger

		cookieName   string
		secureCookie bool
	}

	Pagination struct {
		CurrentPage int64 `json:"currentPage"`
		TotalPages  int64 `json:"totalPages"`
		TotalItems  int64 `json:"totalItems"`
	}

	ItemPage struct {
		Data       []db.Item  `json:"data"`
		Pagination Pagination `json:"pagination"`
	}

	CreateItemBody struct {
		Name     string           `json:"name"`
		Category string           `json:"category"`
		Price    *decimal.Decimal `json:"price"`
	}

	PatchItemBody struct {
		Name     *string          `json:"name"`
		Category *string          `json:"category"`
		Price    *decimal.Decimal `json:"price"`
		Status   *string          `json:"status"`
	}

	PatchUserBody struct {
		Firstname *string `json:"firstname"`
		Lastname  *string `json:"lastname"`
		Email     *string `json:"email"`
	}
)

func NewHandler(config *cfg.Properties, store db.Store, verifier *auth.Verifier, images *app.ProfileImages, logger *zap.Logger) *AppHandler {
	return &AppHandler{
		store:        store,
		verifier:     verifier,
		issuer:       auth.NewIssuer(config.Auth.JWTSecret, config.Auth.TokenTTL),
		images:       images,
		logger:       logger,
		cookieName:   config.Auth.CookieName,
		secureCookie: config.Auth.SecureCookie,
	}
}

func (a *AppHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *AppHandler) ListItems(c *gin.Context) {
	noCache(c)
	page := positiveQuery(c, "page", defaultPage)
	limit := positiveQuery(c, "limit", defaultLimit)
	if limit > maxLimit {
		limit = maxLimit
	}

	items, err := a.store.ListItems(c.Request.Context(), (page-1)*limit, limit)
	if err != nil {
		a.writeError(c, err)
		return
	}
	total, err := a.store.CountItems(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ItemPage{
		Data: items,
		Pagination: Pagination{
			CurrentPage: page,
			TotalPages:  int64(math.Ceil(float64(total) / float64(limit))),
			TotalItems:  total,
		},
	})
}

func (a *AppHandler) CreateItem(c *gin.Context) {
	var body CreateItemBody
	if err := c.ShouldBindJSON(&body); err != nil {
		message(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	name := strings.TrimSpace(body.Name)
	category := strings.TrimSpace(body.Category)
	if name == "" || category == "" || body.Price == nil || body.Price.IsZero() {
		message(c, http.StatusBadRequest, "Missing required fields")
		return
	}

	id, err := a.store.CreateItem(c.Request.Context(), db.Item{
		Name:     name,
		Category: category,
		Price:    *body.Price,
		Status:   db.ItemStatusActive,
	})
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (a *AppHandler) PatchItem(c *gin.Context) {
	var body PatchItemBody
	if err := c.ShouldBindJSON(&body); err != nil {
		message(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	patch := db.ItemPatch{
		Name:     nonBlank(body.Name),
		Category: nonBlank(body.Category),
		Price:    body.Price,
		Status:   nonBlank(body.Status),
	}
	if patch.Empty() {
		message(c, http.StatusBadRequest, "No fields to update")
		return
	}

	matched, err := a.store.UpdateItem(c.Request.Context(), c.Param("id"), patch)
	if errors.Is(err, db.ErrInvalidID) {
		message(c, http.StatusBadRequest, "Invalid item id")
		return
	}
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matchedCount": matched})
}

func (a *AppHandler) DeleteItem(c *gin.Context) {
	deleted, err := a.store.DeleteItem(c.Request.Context(), c.Param("id"))
	if errors.Is(err, db.ErrInvalidID) {
		message(c, http.StatusBadRequest, "Invalid item id")
		return
	}
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deletedCount": deleted})
}

func (a *AppHandler) PatchUser(c *gin.Context) {
	var body PatchUserBody
	if err := c.ShouldBindJSON(&body); err != nil {
		message(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	patch := db.UserPatch{
		Firstname: trimmed(body.Firstname),
		Lastname:  trimmed(body.Lastname),
		Email:     trimmed(body.Email),
	}
	if patch.Empty() {
		message(c, http.StatusBadRequest, "No fields to update")
		return
	}

	matched, err := a.store.UpdateUser(c.Request.Context(), db.ByID(c.Param("id")), patch)
	switch {
	case errors.Is(err, db.ErrInvalidID):
		message(c, http.StatusBadRequest, "Invalid user id")
	case errors.Is(err, db.ErrDuplicate):
		message(c, http.StatusBadRequest, "Duplicate Email!!")
	case err != nil:
		a.writeError(c, err)
	case matched == 0:
		message(c, http.StatusNotFound, "User not found")
	default:
		message(c, http.StatusOK, "User updated")
	}
}

func (a *AppHandler) DeleteUser(c *gin.Context) {
	deleted, err := a.store.DeleteUser(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, db.ErrInvalidID):
		message(c, http.StatusBadRequest, "Invalid user id")
	case err != nil:
		a.writeError(c, err)
	case deleted == 0:
		message(c, http.StatusNotFound, "User not found")
	default:
		message(c, http.StatusOK, "User deleted")
	}
}

// positiveQuery reads an integer query parameter, falling back to def when
// it is absent, malformed or below one.
func positiveQuery(c *gin.Context, name string, def int64) int64 {
	raw, ok := c.GetQuery(name)
	if !ok {
		return def
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || v < 1 {
		return def
	}
	return v
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func nonBlank(s *string) *string {
	v := trimmed(s)
	if v == nil || *v == "" {
		return nil
	}
	return v
}
