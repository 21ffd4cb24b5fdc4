package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"doclink/models"
	"doclink/pkg/pipeline"
	"doclink/pkg/recon"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

func setupRoutes(r *gin.Engine) {
	r.POST("/register", registerHandler)
	r.POST("/login", loginHandler)
	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware())
	authGroup.GET("/me", meHandler)
	authGroup.POST("/upload", uploadPdfHandler)
	authGroup.POST("/docfiles", createDocFileHandler)
	authGroup.GET("/docs", listDocsHandler)
	authGroup.GET("/docs/:id/links", listDocLinksHandler)
	authGroup.GET("/status/:id", fileStatusHandler)
	authGroup.POST("/reconcile", reconcileHandler)
}

func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || len(authHeader) < 8 || authHeader[:7] != "Bearer " {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		tokenString := authHeader[7:]
		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrInvalidKeyType
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			c.Abort()
			return
		}
		username, _ := claims["username"].(string)
		role, _ := claims["role"].(string)
		c.Set("username", username)
		if role != "" {
			c.Set("role", role)
		}
		c.Next()
	}
}

func meHandler(c *gin.Context) {
	usernameVal, _ := c.Get("username")
	if usernameVal == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "context missing username"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": usernameVal.(string)})
}

func registerHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := RegisterUser(req.Username, req.Password); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user registered successfully"})
}

func loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	// Resolve role name from RoleID for the token claim.
	roleName := ""
	if user.RoleID != nil {
		var r models.Role
		if err := db.First(&r, *user.RoleID).Error; err == nil {
			roleName = r.Name
		}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"role":     roleName,
		"exp":      time.Now().Add(time.Hour * 24).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": tokenString})
}

// uploadPdfHandler stores a multipart pdf (plus optional process file),
// registers its DocFile and stages the paths for the extractor.
func uploadPdfHandler(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file missing"})
		return
	}
	if file.Size > 20*1024*1024 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file too large (max 20MB)"})
		return
	}
	pdfDir := filepath.Join(uploadBaseDir(), "pdfs")
	if err := os.MkdirAll(pdfDir, 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "mkdir failed"})
		return
	}
	pdfPath := filepath.Join(pdfDir, pipeline.StoreName(file.Filename))
	if err := c.SaveUploadedFile(file, pdfPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	if err := pipeline.ValidatePDF(pdfPath); err != nil {
		_ = os.Remove(pdfPath)
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "non PDF provided"})
		return
	}
	// optional secondary file used by the extractor
	processPath := ""
	if pf, err := c.FormFile("process"); err == nil {
		processPath = filepath.Join(pdfDir, pipeline.StoreName(pf.Filename))
		if err := c.SaveUploadedFile(pf, processPath); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
			return
		}
	}
	docFile, err := pipeline.RegisterDocFile(db, stagingDB, file.Filename, pdfPath, processPath)
	if err != nil {
		zlog.Errorw("register doc file failed", "file", file.Filename, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db save failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"fileId": docFile.ID})
}

// createDocFileHandler registers a file pair that is already on disk.
func createDocFileHandler(c *gin.Context) {
	var req struct {
		PdfPath     string `json:"pdf_path" binding:"required"`
		ProcessPath string `json:"process_path"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := os.Stat(req.PdfPath); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pdf_path does not exist"})
		return
	}
	docFile, err := pipeline.RegisterDocFile(db, stagingDB, filepath.Base(req.PdfPath), req.PdfPath, req.ProcessPath)
	if err != nil {
		zlog.Errorw("register doc file failed", "path", req.PdfPath, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db save failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"fileId": docFile.ID})
}

// listDocsHandler returns every active doc with its tracked flag (tracked =
// owning DocFile fully processed).
func listDocsHandler(c *gin.Context) {
	var docs []models.Doc
	if err := db.Where("active = ?", true).Order("id").Find(&docs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]gin.H, 0, len(docs))
	for i := range docs {
		tracked, err := recon.IsFullyProcessed(db, &docs[i])
		if err != nil {
			tracked = false
		}
		out = append(out, gin.H{"id": docs[i].ID, "title": docs[i].Title, "tracked": tracked})
	}
	c.JSON(http.StatusOK, out)
}

// listDocLinksHandler returns the active outgoing links of one doc.
func listDocLinksHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var doc models.Doc
	if err := db.First(&doc, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	var links []models.Link
	if err := db.Where("active = ? AND from_doc_id = ?", true, doc.ID).Find(&links).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	out := make([]gin.H, 0, len(links))
	for i := range links {
		out = append(out, gin.H{"fromDoc": links[i].FromDocID, "toDoc": links[i].ToDocID})
	}
	c.JSON(http.StatusOK, out)
}

// fileStatusHandler reports both processing tracks of a DocFile.
func fileStatusHandler(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var file models.DocFile
	if err := db.First(&file, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"doc": file.DocStatus, "links": file.LinksStatus})
}

// reconcileHandler triggers a reconcile run. Admin only.
func reconcileHandler(c *gin.Context) {
	role, _ := c.Get("role")
	if role != "administrator" {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	var req struct {
		MaxItems int `json:"max_items"`
	}
	_ = c.ShouldBindJSON(&req) // empty body means defaults
	engine := recon.NewEngine(db, stagingDB, zlog)
	res, err := engine.Reconcile(c.Request.Context(), req.MaxItems)
	if err != nil {
		zlog.Errorw("reconcile run failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reconcile failed"})
		return
	}
	c.JSON(http.StatusOK, res)
}
