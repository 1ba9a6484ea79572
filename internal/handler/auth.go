package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	ldap "github.com/go-ldap/ldap/v3"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/raids-lab/capstone/dao/model"
	"github.com/raids-lab/capstone/dao/store"
	"github.com/raids-lab/capstone/internal/resputil"
	"github.com/raids-lab/capstone/internal/util"
	"github.com/raids-lab/capstone/pkg/config"
	"github.com/raids-lab/capstone/pkg/logutils"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewAuthMgr)
}

type AuthMgr struct {
	name     string
	users    store.UserStore
	tokenMgr *util.TokenManager
}

func NewAuthMgr(conf *RegisterConfig) Manager {
	return &AuthMgr{
		name:     "auth",
		users:    conf.UserStore,
		tokenMgr: util.GetTokenMgr(),
	}
}

func (mgr *AuthMgr) GetName() string { return mgr.name }

func (mgr *AuthMgr) RegisterPublic(g *gin.RouterGroup) {
	g.POST("/signup", mgr.Signup)
	g.POST("/login", mgr.Login)
	g.POST("/refresh", mgr.RefreshToken)
}

func (mgr *AuthMgr) RegisterProtected(_ *gin.RouterGroup) {}

func (mgr *AuthMgr) RegisterAdmin(_ *gin.RouterGroup) {}

const (
	AuthMethodNormal = "normal"
	AuthMethodLDAP   = "ldap"
)

type (
	SignupReq struct {
		Username string `json:"username" binding:"required"`
		Nickname string `json:"nickname"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
	}

	LoginReq struct {
		Username   string `json:"username" binding:"required"`
		Password   string `json:"password" binding:"required"`
		AuthMethod string `json:"auth" binding:"required"` // [normal, ldap]
	}

	LoginResp struct {
		AccessToken  string         `json:"accessToken"`
		RefreshToken string         `json:"refreshToken"`
		Context      model.UserInfo `json:"context"`
		Role         model.Role     `json:"role"`
	}
)

// Signup godoc
// @Summary Register a student account
// @Description Creates a password account with the student role and returns JWT tokens
// @Tags Auth
// @Accept json
// @Produce json
// @Param data body SignupReq true "account details"
// @Success 200 {object} resputil.Response[LoginResp] "tokens for the new account"
// @Failure 400 {object} resputil.Response[any] "invalid request"
// @Router /auth/signup [post]
func (mgr *AuthMgr) Signup(c *gin.Context) {
	var req SignupReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	password := string(hash)
	nickname := req.Nickname
	if nickname == "" {
		nickname = req.Username
	}
	user := &model.User{
		Name:     req.Username,
		Nickname: &nickname,
		Email:    &req.Email,
		Password: &password,
		Role:     model.RoleStudent,
		Status:   model.UserStatusActive,
	}
	if err := mgr.users.Create(c.Request.Context(), user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			resputil.Error(c, "username or email already taken", resputil.InvalidRequest)
			return
		}
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}
	mgr.respondWithTokens(c, user)
}

// Login godoc
// @Summary Log in
// @Description Verifies credentials against the local password or the campus LDAP
// @Tags Auth
// @Accept json
// @Produce json
// @Param data body LoginReq true "credentials"
// @Success 200 {object} resputil.Response[LoginResp] "JWT tokens"
// @Failure 401 {object} resputil.Response[any] "invalid credentials"
// @Router /auth/login [post]
func (mgr *AuthMgr) Login(c *gin.Context) {
	var req LoginReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	l := logutils.Log.WithFields(logutils.Fields{
		"username": req.Username,
		"auth":     req.AuthMethod,
	})

	switch req.AuthMethod {
	case AuthMethodNormal:
		if err := mgr.normalAuth(c, req.Username, req.Password); err != nil {
			l.Error("invalid credentials: ", err)
			resputil.HTTPError(c, http.StatusUnauthorized, "Invalid credentials", resputil.InvalidCredentials)
			return
		}
	case AuthMethodLDAP:
		if err := mgr.ldapAuth(req.Username, req.Password); err != nil {
			l.Error("invalid credentials: ", err)
			resputil.HTTPError(c, http.StatusUnauthorized, "Invalid credentials", resputil.InvalidCredentials)
			return
		}
	default:
		l.Error("invalid auth method: ", req.AuthMethod)
		resputil.HTTPError(c, http.StatusBadRequest, "Invalid auth method", resputil.InvalidRequest)
		return
	}

	user, err := mgr.users.GetByName(c.Request.Context(), req.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) && req.AuthMethod == AuthMethodLDAP {
			// First LDAP login; provision a student account without a
			// local password.
			user, err = mgr.createLDAPUser(c, req.Username)
			if err != nil {
				l.Error("create new user: ", err)
				resputil.Error(c, "Create user failed", resputil.NotSpecified)
				return
			}
		} else {
			l.Error(err)
			resputil.HTTPError(c, http.StatusUnauthorized, "Invalid credentials", resputil.InvalidCredentials)
			return
		}
	}
	if user.Status != model.UserStatusActive {
		l.Error("user is not active")
		resputil.HTTPError(c, http.StatusUnauthorized, "User is not active", resputil.NotSpecified)
		return
	}
	mgr.respondWithTokens(c, user)
}

func (mgr *AuthMgr) respondWithTokens(c *gin.Context, user *model.User) {
	msg := util.JWTMessage{
		UserID:   user.ID,
		Username: user.Name,
		Role:     user.Role,
	}
	accessToken, refreshToken, err := mgr.tokenMgr.CreateTokens(&msg)
	if err != nil {
		resputil.HTTPError(c, http.StatusInternalServerError, err.Error(), resputil.NotSpecified)
		return
	}
	resputil.Success(c, LoginResp{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Context:      user.Info(),
		Role:         user.Role,
	})
}

func (mgr *AuthMgr) createLDAPUser(c *gin.Context, name string) (*model.User, error) {
	user := &model.User{
		Name:     name,
		Nickname: &name,
		Password: nil,
		Role:     model.RoleStudent,
		Status:   model.UserStatusActive,
	}
	if err := mgr.users.Create(c.Request.Context(), user); err != nil {
		return nil, err
	}
	return user, nil
}

func (mgr *AuthMgr) normalAuth(c *gin.Context, username, password string) error {
	user, err := mgr.users.GetByName(c.Request.Context(), username)
	if err != nil {
		return fmt.Errorf("user not found")
	}
	if user.Password == nil {
		return fmt.Errorf("user does not have a password")
	}
	if bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(password)) != nil {
		return fmt.Errorf("wrong username or password")
	}
	return nil
}

func (mgr *AuthMgr) ldapAuth(username, password string) error {
	authConfig := config.GetConfig().LDAP
	if !authConfig.Enable {
		return fmt.Errorf("ldap auth is disabled")
	}
	l, err := ldap.DialURL(authConfig.Address)
	if err != nil {
		return err
	}
	defer l.Close()
	if err = l.Bind(authConfig.UserName, authConfig.Password); err != nil {
		return err
	}

	searchRequest := ldap.NewSearchRequest(
		authConfig.SearchDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		fmt.Sprintf("(sAMAccountName=%s)", username),
		[]string{"dn"},
		nil,
	)
	searchResult, err := l.Search(searchRequest)
	if err != nil {
		return err
	}
	if len(searchResult.Entries) != 1 {
		return fmt.Errorf("user not found or too many entries returned")
	}
	return l.Bind(searchResult.Entries[0].DN, password)
}

type (
	RefreshReq struct {
		RefreshToken string `json:"refreshToken" binding:"required"` // without the `Bearer ` prefix
	}

	RefreshResp struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
)

// RefreshToken godoc
// @Summary Refresh tokens
// @Description Exchanges a refresh token for a fresh token pair
// @Tags Auth
// @Accept json
// @Produce json
// @Param data body RefreshReq true "refresh token"
// @Success 200 {object} resputil.Response[RefreshResp] "new token pair"
// @Failure 401 {object} resputil.Response[any] "token invalid or expired"
// @Router /auth/refresh [post]
func (mgr *AuthMgr) RefreshToken(c *gin.Context) {
	var req RefreshReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.BadRequestError(c, err.Error())
		return
	}

	claims, err := mgr.tokenMgr.CheckRefreshToken(req.RefreshToken)
	if err != nil {
		resputil.HTTPError(c, http.StatusUnauthorized, "Invalid refresh token", resputil.TokenExpired)
		return
	}
	// Re-read the user so a role change takes effect at refresh time.
	user, err := mgr.users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		resputil.HTTPError(c, http.StatusUnauthorized, "User not found", resputil.TokenInvalid)
		return
	}
	msg := util.JWTMessage{UserID: user.ID, Username: user.Name, Role: user.Role}
	accessToken, refreshToken, err := mgr.tokenMgr.CreateTokens(&msg)
	if err != nil {
		resputil.HTTPError(c, http.StatusInternalServerError, err.Error(), resputil.NotSpecified)
		return
	}
	resputil.Success(c, RefreshResp{AccessToken: accessToken, RefreshToken: refreshToken})
}
