package server

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"wadserv/src/auth"
	db "wadserv/src/repository"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type (
	RegisterBody struct {
		Firstname string `json:"firstname"`
		Lastname  string `json:"lastname"`
		Email     string `json:"email"`
		Username  string `json:"username"`
		Password  string `json:"password"`
	}

	LoginBody struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	ProfileBody struct {
		Firstname string `json:"firstname"`
		Lastname  string `json:"lastname"`
		Email     string `json:"email"`
	}
)

// requireIdentity aborts with 401 unless the request carries a valid token.
func (a *AppHandler) requireIdentity(c *gin.Context) {
	identity, ok := a.verifier.Verify(c.Request)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
		return
	}
	c.Set(identityKey, identity)
	c.Next()
}

func identityFrom(c *gin.Context) *auth.Identity {
	return c.MustGet(identityKey).(*auth.Identity)
}

func (a *AppHandler) Register(c *gin.Context) {
	var body RegisterBody
	if err := c.ShouldBindJSON(&body); err != nil {
		message(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	email := db.NormalizeEmail(body.Email)
	username := strings.TrimSpace(body.Username)
	if email == "" || username == "" || body.Password == "" {
		message(c, http.StatusBadRequest, "Missing required fields")
		return
	}
	if !emailPattern.MatchString(email) {
		message(c, http.StatusBadRequest, "Invalid email format")
		return
	}
	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		message(c, http.StatusBadRequest, err.Error())
		return
	}

	id, err := a.store.CreateUser(c.Request.Context(), db.User{
		Firstname: strings.TrimSpace(body.Firstname),
		Lastname:  strings.TrimSpace(body.Lastname),
		Email:     email,
		Username:  username,
		Password:  hash,
	})
	if errors.Is(err, db.ErrDuplicate) {
		message(c, http.StatusBadRequest, "Duplicate Email!!")
		return
	}
	if err != nil {
		a.writeError(c, err)
		return
	}
	a.logger.Info("user registered", zap.String("id", id))
	c.JSON(http.StatusOK, gin.H{"id": id})
}

func (a *AppHandler) Login(c *gin.Context) {
	var body LoginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		message(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Email) == "" || body.Password == "" {
		message(c, http.StatusBadRequest, "Missing required fields")
		return
	}

	user, err := a.store.FindUser(c.Request.Context(), db.ByEmail(body.Email))
	if errors.Is(err, db.ErrNotFound) {
		message(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		a.writeError(c, err)
		return
	}
	if !auth.VerifyPassword(user.Password, body.Password) {
		message(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := a.issuer.Issue(auth.Identity{ID: user.ID, Email: user.Email, Username: user.Username})
	if err != nil {
		a.writeError(c, err)
		return
	}
	a.setTokenCookie(c, token)
	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "token": token})
}

func (a *AppHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(a.cookieName, "", -1, "/", "", a.secureCookie, true)
	message(c, http.StatusOK, "Logged out")
}

func (a *AppHandler) GetProfile(c *gin.Context) {
	identity := identityFrom(c)
	user, err := a.store.FindUser(c.Request.Context(), db.ByEmail(identity.Email))
	if errors.Is(err, db.ErrNotFound) {
		message(c, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// PutProfile replaces the caller's names and email, then re-issues the
// token so it carries the new email.
func (a *AppHandler) PutProfile(c *gin.Context) {
	identity := identityFrom(c)
	var body ProfileBody
	if err := c.ShouldBindJSON(&body); err != nil {
		message(c, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	firstname := strings.TrimSpace(body.Firstname)
	lastname := strings.TrimSpace(body.Lastname)
	email := db.NormalizeEmail(body.Email)
	if firstname == "" || lastname == "" || email == "" {
		message(c, http.StatusBadRequest, "First name, last name and email are required")
		return
	}
	if !emailPattern.MatchString(email) {
		message(c, http.StatusBadRequest, "Invalid email format")
		return
	}

	matched, err := a.store.UpdateUser(c.Request.Context(), db.ByEmail(identity.Email), db.UserPatch{
		Firstname: &firstname,
		Lastname:  &lastname,
		Email:     &email,
	})
	if errors.Is(err, db.ErrDuplicate) {
		message(c, http.StatusBadRequest, "Duplicate Email!!")
		return
	}
	if err != nil {
		a.logger.Error("update profile", zap.String("email", identity.Email), zap.Error(err))
		message(c, http.StatusInternalServerError, "Failed to update profile")
		return
	}
	if matched == 0 {
		message(c, http.StatusNotFound, "User not found")
		return
	}

	token, err := a.issuer.Issue(auth.Identity{ID: identity.ID, Email: email, Username: identity.Username})
	if err != nil {
		a.writeError(c, err)
		return
	}
	a.setTokenCookie(c, token)
	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated",
		"data": ProfileBody{
			Firstname: firstname,
			Lastname:  lastname,
			Email:     email,
		},
	})
}

func (a *AppHandler) setTokenCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(a.cookieName, token, int(a.issuer.TTL().Seconds()), "/", "", a.secureCookie, true)
}
