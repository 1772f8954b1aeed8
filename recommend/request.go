package recommend

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/pkg/utils"
)

// userIDPattern 是合法 UserID 的格式：1-128 个字母、数字或 _-:.
var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_\-:.]{1,128}$`)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator 返回单例 validator，注册了 userid 规则。
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("userid", func(fl validator.FieldLevel) bool {
			return userIDPattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Request 是一次推荐请求。K 为 0 时返回空结果；调用方未指定 k 时由入口层填 DefaultK。
type Request struct {
	UserID string         `json:"user_id" validate:"required,userid"`
	K      int            `json:"k" validate:"gte=0"`
	Scene  string         `json:"scene,omitempty" validate:"omitempty,max=64"`
	Params map[string]any `json:"params,omitempty"`
}

// Validate 校验请求，失败时返回 INVALID_INPUT。
func (r *Request) Validate(maxK int) error {
	if err := getValidator().Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return core.InvalidInput("%s", strings.Join(msgs, "; "))
		}
		return core.InvalidInput("invalid request: %v", err)
	}
	if maxK > 0 && r.K > maxK {
		return core.InvalidInput("k must be at most %d, got %d", maxK, r.K)
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", strings.ToLower(fe.Field()))
	case "userid":
		return fmt.Sprintf("malformed user id %q", fe.Value())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", strings.ToLower(fe.Field()), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", strings.ToLower(fe.Field()), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag())
	}
}

func (r *Request) context() *core.RecommendContext {
	return &core.RecommendContext{
		UserID: r.UserID,
		Scene:  r.Scene,
		K:      r.K,
		Params: r.Params,
	}
}

// SourceReport 描述一个来源在本次请求中的解析结果。
type SourceReport struct {
	Source  string `json:"source"`
	Status  string `json:"status"`
	Count   int    `json:"count"`
	Lookups int    `json:"lookups,omitempty"`
	Misses  int    `json:"misses,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func report(o core.Outcome) *SourceReport {
	r := &SourceReport{
		Source:  o.Source,
		Status:  o.Status.String(),
		Count:   len(o.Items),
		Lookups: o.Lookups,
		Misses:  o.Misses,
	}
	if o.Reason != nil {
		r.Reason = o.Reason.Error()
	}
	return r
}

// Response 是推荐结果。Items 长度 <= K 且无重复。
type Response struct {
	UserID  string            `json:"user_id"`
	K       int               `json:"k"`
	Items   core.RankedList   `json:"items"`
	Offline *SourceReport     `json:"offline,omitempty"`
	Online  *SourceReport     `json:"online,omitempty"`
	Labels  map[string]string `json:"labels,omitempty"`
}

func newResponse(req Request, items core.RankedList, rctx *core.RecommendContext) *Response {
	if items == nil {
		items = core.RankedList{}
	}
	return &Response{
		UserID: req.UserID,
		K:      req.K,
		Items:  items,
		Labels: utils.FlattenLabels(rctx.Labels),
	}
}
