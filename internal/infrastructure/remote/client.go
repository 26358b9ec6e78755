package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/nexuscrm/formengine/internal/config"
	"github.com/nexuscrm/formengine/pkg/constants"
	"github.com/nexuscrm/formengine/pkg/models"
)

// queryCompanyID is the tenant query parameter the hosted backend expects
const queryCompanyID = "companyId"

// Client talks to the hosted CRM backend. It serves as registry store, candidate lookup source
// and record store.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

func NewClient(cfg config.RemoteConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader(constants.HeaderContentType, constants.ContentTypeJSON).
		SetHeader("Accept", constants.ContentTypeJSON).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// only reads are retried; writes must not be replayed
			if r == nil || r.Request == nil || r.Request.Method != http.MethodGet {
				return false
			}
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &Client{http: httpClient, logger: logger}
}

func (c *Client) request(ctx context.Context, tenantID string) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader(constants.HeaderTenantID, tenantID)
}

// remoteError turns a transport failure or non-2xx response into an error
func remoteError(op string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.IsError() {
		body := strings.TrimSpace(resp.String())
		if len(body) > 200 {
			body = body[:200]
		}
		return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode(), body)
	}
	return nil
}

// LoadFieldConfig fetches the registry for (tenant, entity type)
func (c *Client) LoadFieldConfig(ctx context.Context, tenantID, entityType string) ([]models.FieldDefinition, error) {
	resp, err := c.request(ctx, tenantID).
		SetQueryParam(queryCompanyID, tenantID).
		Get(fmt.Sprintf(constants.PathFieldConfig, entityType))
	if err := remoteError("load field config", resp, err); err != nil {
		c.logger.Warn("Remote field config load failed",
			zap.String("tenant_id", tenantID),
			zap.String("entity_type", entityType),
			zap.Error(err))
		return nil, err
	}
	var fields []models.FieldDefinition
	if err := json.Unmarshal(resp.Body(), &fields); err != nil {
		return nil, fmt.Errorf("decode field config: %w", err)
	}
	if fields == nil {
		fields = []models.FieldDefinition{}
	}
	return fields, nil
}

type saveFieldConfigRequest struct {
	CompanyID    string                     `json:"companyId"`
	FieldConfigs []models.FieldConfigUpdate `json:"fieldConfigs"`
}

// SaveFieldConfig replaces the stored registry with the editable projection of fields
func (c *Client) SaveFieldConfig(ctx context.Context, tenantID, entityType string, fields []models.FieldDefinition) error {
	body := saveFieldConfigRequest{CompanyID: tenantID, FieldConfigs: make([]models.FieldConfigUpdate, 0, len(fields))}
	for _, f := range fields {
		body.FieldConfigs = append(body.FieldConfigs, f.ToUpdate())
	}
	resp, err := c.request(ctx, tenantID).
		SetBody(body).
		Put(fmt.Sprintf(constants.PathFieldConfig, entityType))
	return remoteError("save field config", resp, err)
}

// FetchEntities lists candidates of lookupType, narrowed by filter
func (c *Client) FetchEntities(ctx context.Context, tenantID, lookupType string, filter map[string]string) ([]models.Entity, error) {
	req := c.request(ctx, tenantID).SetQueryParam(queryCompanyID, tenantID)
	for k, v := range filter {
		req.SetQueryParam(k, v)
	}
	resp, err := req.Get(fmt.Sprintf(constants.PathRelatedEntities, lookupType))
	if err := remoteError("fetch "+lookupType, resp, err); err != nil {
		return nil, err
	}
	return decodeEntityList(resp.Body(), lookupType)
}

// decodeEntityList accepts either a bare JSON array or an object wrapping it under the lookup type
func decodeEntityList(body []byte, lookupType string) ([]models.Entity, error) {
	var list []models.Entity
	if err := json.Unmarshal(body, &list); err == nil {
		if list == nil {
			list = []models.Entity{}
		}
		return list, nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode %s: %w", lookupType, err)
	}
	for _, key := range []string{lookupType, "data", "items"} {
		raw, ok := wrapped[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode %s.%s: %w", lookupType, key, err)
		}
		if list == nil {
			list = []models.Entity{}
		}
		return list, nil
	}
	return nil, fmt.Errorf("decode %s: no candidate list in response", lookupType)
}

func recordBody(tenantID string, payload map[string]interface{}) map[string]interface{} {
	body := make(map[string]interface{}, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body[queryCompanyID] = tenantID
	return body
}

// CreateRecord posts a new record and returns the id the backend assigned
func (c *Client) CreateRecord(ctx context.Context, tenantID, entityType string, payload map[string]interface{}) (string, error) {
	resp, err := c.request(ctx, tenantID).
		SetBody(recordBody(tenantID, payload)).
		Post(fmt.Sprintf(constants.PathRecords, entityType))
	if err := remoteError("create "+entityType, resp, err); err != nil {
		return "", err
	}
	return extractRecordID(resp.Body(), entityType), nil
}

// UpdateRecord replaces an existing record
func (c *Client) UpdateRecord(ctx context.Context, tenantID, entityType, recordID string, payload map[string]interface{}) error {
	resp, err := c.request(ctx, tenantID).
		SetBody(recordBody(tenantID, payload)).
		Put(fmt.Sprintf(constants.PathRecord, entityType, recordID))
	return remoteError("update "+entityType, resp, err)
}

// extractRecordID reads "id" at the top level or nested under the entity type or "data".
// An unparseable body yields an empty id; the write itself already succeeded.
func extractRecordID(body []byte, entityType string) string {
	var top models.Entity
	if err := json.Unmarshal(body, &top); err != nil {
		return ""
	}
	if id := top.ID(); id != "" {
		return id
	}
	for _, key := range []string{entityType, "data"} {
		if nested, ok := top[key].(map[string]interface{}); ok {
			if id := models.Entity(nested).ID(); id != "" {
				return id
			}
		}
	}
	return ""
}
