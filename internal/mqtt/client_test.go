package mqtt

import (
	"testing"

	"github.com/berfenger/plenticharge/internal/config"
	"github.com/berfenger/plenticharge/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubMessage satisfies mqtt.Message for parser tests.
type stubMessage struct {
	topic   string
	payload string
}

func (m stubMessage) Duplicate() bool   { return false }
func (m stubMessage) Qos() byte         { return 0 }
func (m stubMessage) Retained() bool    { return false }
func (m stubMessage) Topic() string     { return m.topic }
func (m stubMessage) MessageID() uint16 { return 0 }
func (m stubMessage) Payload() []byte   { return []byte(m.payload) }
func (m stubMessage) Ack()              {}

func testClient() *MQTTClient {
	cfg := &config.Config{MQTT: config.MQTTConfig{
		Host:      "localhost",
		Port:      1883,
		BaseTopic: "plenticharge",
	}}
	return CreateMQTTClient(cfg, OptsFromConfig(cfg), nil, nil)
}

func TestTopicLayout(t *testing.T) {

	assert := assert.New(t)

	c := testClient()
	assert.Equal("plenticharge/bridge/state", c.BridgeStateTopic())
	assert.Equal("plenticharge/sensor/battery_soc/state",
		c.SensorStateTopic(domain.SENSOR_ID_BATTERY_SOC))
	assert.Equal("plenticharge/switch/automation/command",
		c.SwitchCommandTopic(domain.SWITCH_ID_AUTOMATION))
	assert.Equal("plenticharge/number/charge_target_soc/set",
		c.InputNumberCommandTopic(domain.INPUT_NUMBER_ID_TARGET_SOC))
}

func TestParseAutomationSwitchCommand(t *testing.T) {

	require := require.New(t)

	c := testClient()
	cmd, err := c.ParseMQTTCommand(stubMessage{
		topic:   "plenticharge/switch/automation/command",
		payload: "on",
	})
	require.NoError(err)
	assert.Equal(t, domain.SWITCH_ID_AUTOMATION, cmd.DeviceId)
	assert.Equal(t, "switch", cmd.Command)
	assert.Equal(t, "on", cmd.Payload)
}

func TestParseTargetSoCCommand(t *testing.T) {

	require := require.New(t)

	c := testClient()
	cmd, err := c.ParseMQTTCommand(stubMessage{
		topic:   "plenticharge/number/charge_target_soc/set",
		payload: "90",
	})
	require.NoError(err)
	assert.Equal(t, domain.INPUT_NUMBER_ID_TARGET_SOC, cmd.DeviceId)
	assert.Equal(t, "number", cmd.Command)
	assert.Equal(t, "90", cmd.Payload)
}

func TestParseTargetSoCRejectsNonNumericPayload(t *testing.T) {

	c := testClient()
	_, err := c.ParseMQTTCommand(stubMessage{
		topic:   "plenticharge/number/charge_target_soc/set",
		payload: "ninety",
	})
	assert.Error(t, err)
}

func TestStateTopicsAreNotCommands(t *testing.T) {

	c := testClient()
	_, err := c.ParseMQTTCommand(stubMessage{
		topic:   "plenticharge/switch/manual_charge/state",
		payload: "on",
	})
	assert.Error(t, err)

	_, err = c.ParseMQTTCommand(stubMessage{
		topic:   "plenticharge/number/charge_target_soc/state",
		payload: "90",
	})
	assert.Error(t, err)
}

func TestSwitchCommandParse(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "plenticharge"
	topic := "plenticharge/switch/manual_charge/command"
	r := switchCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal(matches[0][1], "manual_charge", "device extract")
}

func TestInputNumberCommandParse(t *testing.T) {

	assert := assert.New(t)

	baseTopic := "plenticharge"
	topic := "plenticharge/number/charge_target_soc/set"
	r := inputNumberCommandExtractor(baseTopic)
	matches := r.FindAllStringSubmatch(topic, 1)

	assert.Equal(matches[0][1], "charge_target_soc", "number_id extract")
}
