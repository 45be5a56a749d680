package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/messdesk/mess_backend/models"
	"github.com/messdesk/mess_backend/utils"
)

func listMessGroupsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		activeOnly := c.Query("all") != "true" || !isAdmin(c)
		groups, err := models.ListMessGroups(c.Request.Context(), activeOnly)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, groups)
	}
}

func createMessGroupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewMessGroup
		if !bindJSON(c, &input) {
			return
		}
		group, err := models.CreateMessGroup(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, group)
	}
}

func updateMessGroupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c, "id")
		if !ok {
			return
		}
		var input models.NewMessGroup
		if !bindJSON(c, &input) {
			return
		}
		group, err := models.UpdateMessGroup(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, group)
	}
}

func myMessGroupsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		memberships, err := models.GetUserMessGroups(c.Request.Context(), currentUserId(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, memberships)
	}
}

func selectMessGroupsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.SelectMessGroupsInput
		if !bindJSON(c, &input) {
			return
		}
		memberships, err := models.SelectMessGroups(c.Request.Context(), currentUserId(c), input.MessGroupIds)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, memberships)
	}
}

func effectiveMenusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		date, ok := queryDate(c, "date", utils.Today())
		if !ok {
			return
		}
		menus, err := models.GetEffectiveMenus(c.Request.Context(), date)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, menus)
	}
}

func listMenusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		menus, err := models.ListMenus(c.Request.Context(), c.Query("active") == "true")
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, menus)
	}
}

func createMenuHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewMenu
		if !bindJSON(c, &input) {
			return
		}
		menu, err := models.CreateMenu(c.Request.Context(), &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, menu)
	}
}

func updateMenuHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c, "id")
		if !ok {
			return
		}
		var input models.NewMenu
		if !bindJSON(c, &input) {
			return
		}
		menu, err := models.UpdateMenu(c.Request.Context(), id, &input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, menu)
	}
}

func deactivateMenuHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := paramId(c, "id")
		if !ok {
			return
		}
		if err := models.DeactivateMenu(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "menu deactivated"})
	}
}
