package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"

	"github.com/expensabot/expensa/internal/models"
	"github.com/expensabot/expensa/internal/service"
	svcmocks "github.com/expensabot/expensa/internal/service/mocks"
)

const multiMessagePayload = `{
	"object": "whatsapp_business_account",
	"entry": [{
		"id": "biz-1",
		"changes": [{
			"field": "messages",
			"value": {
				"messaging_product": "whatsapp",
				"metadata": {"display_phone_number": "5215550001111", "phone_number_id": "15550001111"},
				"contacts": [{"wa_id": "5215512345678", "profile": {"name": "Ana"}}],
				"messages": [
					{"id": "wamid.1", "from": "5215512345678", "type": "text", "text": {"body": "gasté 5000 en pizza"}},
					{"id": "wamid.2", "from": "5215512345678", "type": "image", "image": {"id": "media-1", "mime_type": "image/jpeg", "caption": "ticket"}},
					{"id": "wamid.3", "from": "5215512345678", "type": "sticker"}
				]
			}
		}]
	}]
}`

func newIngress(t *testing.T) (service.IngressService, *svcmocks.MockPublisher) {
	t.Helper()

	ctrl := gomock.NewController(t)
	publisher := svcmocks.NewMockPublisher(ctrl)
	return service.NewIngressService(publisher, zap.NewNop()), publisher
}

func TestIngressService_Ingest_FansOutPerMessage(t *testing.T) {
	svc, publisher := newIngress(t)

	var (
		mu    sync.Mutex
		units []*models.QueuedUnit
	)
	publisher.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, unit *models.QueuedUnit) (string, error) {
			mu.Lock()
			defer mu.Unlock()
			units = append(units, unit)
			return "brk-" + unit.Message.ID, nil
		}).
		Times(3)

	queued, err := svc.Ingest(context.Background(), []byte(multiMessagePayload))
	require.NoError(t, err)
	assert.Equal(t, 3, queued)

	byID := make(map[string]*models.QueuedUnit, len(units))
	for _, unit := range units {
		assert.Equal(t, "15550001111", unit.PhoneNumberID)
		byID[unit.Message.ID] = unit
	}

	text := byID["wamid.1"]
	require.NotNil(t, text)
	assert.Equal(t, models.KindText, text.Message.Kind)
	assert.Equal(t, "gasté 5000 en pizza", text.Message.Text)
	assert.Equal(t, "Ana", text.Message.ProfileName)

	image := byID["wamid.2"]
	require.NotNil(t, image)
	assert.Equal(t, models.KindImage, image.Message.Kind)
	require.NotNil(t, image.Message.Media)
	assert.Equal(t, "media-1", image.Message.Media.ID)
	assert.Equal(t, "ticket", image.Message.Text)

	sticker := byID["wamid.3"]
	require.NotNil(t, sticker)
	assert.Equal(t, models.KindOther, sticker.Message.Kind)
}

func TestIngressService_Ingest_DocumentReceipt(t *testing.T) {
	svc, publisher := newIngress(t)

	payload := `{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "biz-1",
			"changes": [{
				"field": "messages",
				"value": {
					"metadata": {"phone_number_id": "15550001111"},
					"messages": [
						{"id": "wamid.doc", "from": "5215512345678", "type": "document", "document": {"id": "media-9", "mime_type": "image/png", "caption": "factura luz"}}
					]
				}
			}]
		}]
	}`

	var captured *models.QueuedUnit
	publisher.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, unit *models.QueuedUnit) (string, error) {
			captured = unit
			return "brk-doc", nil
		})

	queued, err := svc.Ingest(context.Background(), []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, 1, queued)

	require.NotNil(t, captured)
	assert.Equal(t, models.KindDocument, captured.Message.Kind)
	require.NotNil(t, captured.Message.Media)
	assert.Equal(t, "media-9", captured.Message.Media.ID)
	assert.Equal(t, "image/png", captured.Message.Media.MimeType)
	assert.Equal(t, "factura luz", captured.Message.Text)
}

func TestIngressService_Ingest_FailingEnqueueDoesNotBlockSiblings(t *testing.T) {
	svc, publisher := newIngress(t)

	publisher.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, unit *models.QueuedUnit) (string, error) {
			if unit.Message.ID == "wamid.2" {
				return "", errors.New("broker publish returned status 503")
			}
			return "brk-ok", nil
		}).
		Times(3)

	queued, err := svc.Ingest(context.Background(), []byte(multiMessagePayload))
	require.NoError(t, err)
	assert.Equal(t, 2, queued)
}

func TestIngressService_Ingest_SkipsNonMessageChanges(t *testing.T) {
	svc, _ := newIngress(t)

	payload := `{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "biz-1",
			"changes": [{
				"field": "message_template_status_update",
				"value": {}
			}]
		}]
	}`

	queued, err := svc.Ingest(context.Background(), []byte(payload))
	require.NoError(t, err)
	assert.Zero(t, queued)
}

func TestIngressService_Ingest_StatusOnlyPayload(t *testing.T) {
	svc, _ := newIngress(t)

	payload := `{
		"object": "whatsapp_business_account",
		"entry": [{
			"id": "biz-1",
			"changes": [{
				"field": "messages",
				"value": {
					"metadata": {"phone_number_id": "15550001111"},
					"statuses": [{"id": "wamid.1", "status": "delivered"}]
				}
			}]
		}]
	}`

	queued, err := svc.Ingest(context.Background(), []byte(payload))
	require.NoError(t, err)
	assert.Zero(t, queued)
}

func TestIngressService_Ingest_UnexpectedObject(t *testing.T) {
	svc, _ := newIngress(t)

	queued, err := svc.Ingest(context.Background(), []byte(`{"object":"page","entry":[]}`))
	require.NoError(t, err)
	assert.Zero(t, queued)
}

func TestIngressService_Ingest_UndecodableBody(t *testing.T) {
	svc, _ := newIngress(t)

	queued, err := svc.Ingest(context.Background(), []byte("not json"))
	require.NoError(t, err)
	assert.Zero(t, queued)
}
