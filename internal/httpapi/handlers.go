package httpapi

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/matheus3301/flowchat/internal/api"
	"github.com/matheus3301/flowchat/internal/bus"
	"github.com/matheus3301/flowchat/internal/rpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

type handlers struct {
	svc Services
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func httpStatus(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.NotFound:
		return http.StatusNotFound
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.FailedPrecondition:
		return http.StatusPreconditionFailed
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Canceled:
		return 499
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as JSON. Service errors arrive as gRPC statuses; anything
// else is classified the same way the gRPC layer does it.
func fail(c *gin.Context, err error) {
	st, ok := grpcstatus.FromError(err)
	if !ok {
		st = grpcstatus.New(api.Code(err), err.Error())
	}
	var body errorBody
	body.Error.Code = st.Code().String()
	body.Error.Message = st.Message()
	c.AbortWithStatusJSON(httpStatus(st.Code()), body)
}

func badRequest(c *gin.Context, msg string) {
	fail(c, grpcstatus.Error(codes.InvalidArgument, msg))
}

func userID(c *gin.Context) string {
	return c.GetHeader(UserHeader)
}

type sendBody struct {
	Content     string `json:"content"`
	MessageType string `json:"message_type"`
	MediaURL    string `json:"media_url"`
	SenderType  string `json:"sender_type"`
}

func (h *handlers) sendMessage(c *gin.Context) {
	var body sendBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid body: "+err.Error())
		return
	}
	resp, err := h.svc.Messages.SendMessage(c.Request.Context(), &rpc.SendMessageRequest{
		TenantID:    c.Param("tenant"),
		ContactID:   c.Param("contact"),
		UserID:      userID(c),
		SenderType:  body.SenderType,
		Content:     body.Content,
		MessageType: body.MessageType,
		MediaURL:    body.MediaURL,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *handlers) listMessages(c *gin.Context) {
	req := &rpc.ListMessagesRequest{TenantID: c.Param("tenant"), ContactID: c.Param("contact")}
	if v := c.Query("before"); v != "" {
		before, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			badRequest(c, "before must be unix milliseconds")
			return
		}
		req.BeforeUnixMs = before
		req.BeforeID = c.Query("before_id")
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			badRequest(c, "limit must be an integer")
			return
		}
		req.Limit = int32(limit)
	}
	resp, err := h.svc.Messages.ListMessages(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) unreadCount(c *gin.Context) {
	resp, err := h.svc.Messages.GetUnreadCount(c.Request.Context(), &rpc.GetUnreadCountRequest{
		TenantID:  c.Param("tenant"),
		ContactID: c.Param("contact"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) listUnread(c *gin.Context) {
	resp, err := h.svc.Messages.ListUnread(c.Request.Context(), &rpc.ListUnreadRequest{TenantID: c.Param("tenant")})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) markRead(c *gin.Context) {
	resp, err := h.svc.Messages.MarkRead(c.Request.Context(), &rpc.MarkReadRequest{
		TenantID:  c.Param("tenant"),
		MessageID: c.Param("message"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

func (h *handlers) markContactRead(c *gin.Context) {
	resp, err := h.svc.Messages.MarkContactRead(c.Request.Context(), &rpc.MarkContactReadRequest{
		TenantID:  c.Param("tenant"),
		ContactID: c.Param("contact"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

func (h *handlers) recordInbound(c *gin.Context) {
	var req rpc.RecordInboundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid body: "+err.Error())
		return
	}
	req.TenantID = c.Param("tenant")
	resp, err := h.svc.Messages.RecordInbound(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}
	code := http.StatusCreated
	if resp.Duplicate {
		code = http.StatusOK
	}
	c.JSON(code, resp)
}

func (h *handlers) getSettings(c *gin.Context) {
	resp, err := h.svc.Settings.GetSettings(c.Request.Context(), &rpc.GetSettingsRequest{
		TenantID: c.Param("tenant"),
		UserID:   userID(c),
	})
	if err != nil {
		fail(c, err)
		return
	}
	if resp.Settings == nil {
		fail(c, grpcstatus.Error(codes.NotFound, "settings not found"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

type settingsBody struct {
	rpc.ChatSettings
	ClearSecret bool `json:"clear_secret"`
}

func (h *handlers) saveSettings(c *gin.Context) {
	var body settingsBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid body: "+err.Error())
		return
	}
	body.TenantID = c.Param("tenant")
	body.UserID = userID(c)
	resp, err := h.svc.Settings.SaveSettings(c.Request.Context(), &rpc.SaveSettingsRequest{
		Settings:    &body.ChatSettings,
		ClearSecret: body.ClearSecret,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) resolveSettings(c *gin.Context) {
	resp, err := h.svc.Settings.ResolveSettings(c.Request.Context(), &rpc.ResolveSettingsRequest{
		TenantID: c.Param("tenant"),
		UserID:   userID(c),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) testConnection(c *gin.Context) {
	resp, err := h.svc.Settings.TestConnection(c.Request.Context(), &rpc.TestConnectionRequest{
		TenantID: c.Param("tenant"),
		UserID:   userID(c),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type contactBody struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (h *handlers) upsertContact(c *gin.Context) {
	var body contactBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid body: "+err.Error())
		return
	}
	resp, err := h.svc.Contacts.UpsertContact(c.Request.Context(), &rpc.UpsertContactRequest{
		Contact: &rpc.Contact{
			ID:       c.Param("contact"),
			TenantID: c.Param("tenant"),
			Name:     body.Name,
			Phone:    body.Phone,
		},
	})
	if err != nil {
		fail(c, err)
		return
	}
	code := http.StatusOK
	if c.Request.Method == http.MethodPost {
		code = http.StatusCreated
	}
	c.JSON(code, resp)
}

func (h *handlers) getContact(c *gin.Context) {
	resp, err := h.svc.Contacts.GetContact(c.Request.Context(), &rpc.GetContactRequest{
		TenantID: c.Param("tenant"),
		ID:       c.Param("contact"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// watchEvents streams the tenant's bus events as server-sent events until
// the client leaves.
func (h *handlers) watchEvents(c *gin.Context) {
	tenantID := c.Param("tenant")
	prefix := c.DefaultQuery("prefix", "message.")
	ch, unsub := h.svc.Bus.Subscribe(prefix, 64)
	defer unsub()

	c.Header("Cache-Control", "no-cache")
	c.Stream(func(_ io.Writer) bool {
		select {
		case evt := <-ch:
			if bus.TenantOf(evt) != tenantID {
				return true
			}
			out, err := api.EventToRPC(evt)
			if err != nil {
				return true
			}
			c.SSEvent(evt.Kind, out)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
