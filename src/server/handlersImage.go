package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	app "wadserv/src/app"
)

func (a *AppHandler) PostProfileImage(c *gin.Context) {
	a.uploadImage(c, app.Self())
}

func (a *AppHandler) DeleteProfileImage(c *gin.Context) {
	a.deleteImage(c, app.Self())
}

func (a *AppHandler) PostUserImage(c *gin.Context) {
	a.uploadImage(c, app.UserID(c.Param("id")))
}

func (a *AppHandler) DeleteUserImage(c *gin.Context) {
	a.deleteImage(c, app.UserID(c.Param("id")))
}

func (a *AppHandler) uploadImage(c *gin.Context, target app.Target) {
	path, err := a.images.Upload(c.Request, target)
	if err != nil {
		a.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"imageUrl": "/" + path.String()})
}

func (a *AppHandler) deleteImage(c *gin.Context, target app.Target) {
	if err := a.images.Delete(c.Request, target); err != nil {
		a.writeError(c, err)
		return
	}
	message(c, http.StatusOK, "Image removed")
}
