package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/questkeep/questkeep/internal/models"
)

type fakeSES struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(_ context.Context, params *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

type recordingPublisher struct {
	routingKeys []string
	bodies      []interface{}
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, body interface{}) error {
	p.routingKeys = append(p.routingKeys, routingKey)
	p.bodies = append(p.bodies, body)
	return nil
}

func (p *recordingPublisher) Close() {}

func testLockoutEvent() models.LockoutEvent {
	return models.LockoutEvent{
		UserID:         "parent-1",
		ContactEmail:   "parent@example.com",
		FailedAttempts: 5,
		LockoutCount:   1,
		LockedUntil:    time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC),
	}
}

func TestEmailNotifier_SendsViaSES(t *testing.T) {
	client := &fakeSES{}
	mailer := &AWSSESEmailService{sesClient: client, fromAddress: "noreply@questkeep.app", logger: testLogger()}

	require.NoError(t, NewEmailNotifier(mailer).NotifyLockout(context.Background(), testLockoutEvent()))

	require.Len(t, client.inputs, 1)
	input := client.inputs[0]
	assert.Equal(t, []string{"parent@example.com"}, input.Destination.ToAddresses)
	assert.Equal(t, "noreply@questkeep.app", aws.ToString(input.Source))
	assert.Contains(t, aws.ToString(input.Message.Body.Text.Data), "5 times")
}

func TestEmailNotifier_SkipsMissingContact(t *testing.T) {
	client := &fakeSES{}
	mailer := &AWSSESEmailService{sesClient: client, logger: testLogger()}
	event := testLockoutEvent()
	event.ContactEmail = ""

	require.NoError(t, NewEmailNotifier(mailer).NotifyLockout(context.Background(), event))
	assert.Empty(t, client.inputs)
}

func TestEmailNotifier_SESError(t *testing.T) {
	client := &fakeSES{err: errors.New("throttled")}
	mailer := &AWSSESEmailService{sesClient: client, logger: testLogger()}

	assert.Error(t, NewEmailNotifier(mailer).NotifyLockout(context.Background(), testLockoutEvent()))
}

func TestEventNotifier_StripsContact(t *testing.T) {
	pub := &recordingPublisher{}

	require.NoError(t, NewEventNotifier(pub).NotifyLockout(context.Background(), testLockoutEvent()))

	require.Len(t, pub.bodies, 1)
	assert.Equal(t, "pin.locked", pub.routingKeys[0])
	event, ok := pub.bodies[0].(models.LockoutEvent)
	require.True(t, ok)
	assert.Empty(t, event.ContactEmail)
	assert.Equal(t, "parent-1", event.UserID)
}

func TestMultiNotifier_JoinsErrors(t *testing.T) {
	first := &MockLockoutNotifier{Err: errors.New("first")}
	second := &MockLockoutNotifier{}
	third := &MockLockoutNotifier{Err: errors.New("third")}

	err := MultiNotifier{first, second, NewLogNotifier(testLogger()), third}.NotifyLockout(context.Background(), testLockoutEvent())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "first")
	assert.Contains(t, err.Error(), "third")
	assert.Len(t, second.Events, 1, "later notifiers still run")
}
