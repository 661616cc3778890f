package session

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/fitwire/fitwire/connector"
	"github.com/fitwire/fitwire/internal/gatt"
	"github.com/fitwire/fitwire/internal/profiledb"
	"github.com/fitwire/fitwire/internal/status"
	"github.com/fitwire/fitwire/internal/testutils"
	"github.com/fitwire/fitwire/telemetry"
)

// syncWriter signals every completed write so tests can wait for report
// lines to land before asserting on the buffer.
type syncWriter struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	wrote chan struct{}
}

func newSyncWriter() *syncWriter {
	return &syncWriter{wrote: make(chan struct{}, 64)}
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := w.buf.Write(p)
	w.wrote <- struct{}{}
	return n, err
}

func (w *syncWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

type SessionTestSuite struct {
	suite.Suite

	out    *syncWriter
	ctx    context.Context
	cancel context.CancelFunc
	errCh  chan error
}

func (suite *SessionTestSuite) SetupTest() {
	suite.out = newSyncWriter()
	suite.ctx, suite.cancel = context.WithCancel(context.Background())
	suite.errCh = make(chan error, 1)
}

func (suite *SessionTestSuite) TearDownTest() {
	suite.cancel()
}

// device assembles a mock peripheral exposing a single service with a single
// characteristic. The returned channel feeds the peripheral's Disconnected
// signal.
func (suite *SessionTestSuite) device(addr, serviceUUID, charUUID string) (*testutils.MockPeripheral, *testutils.MockCharacteristic, chan struct{}) {
	char := &testutils.MockCharacteristic{}
	char.On("UUID").Return(charUUID)

	svc := &testutils.MockService{}
	svc.On("UUID").Return(serviceUUID)
	svc.On("DiscoverCharacteristics", []string{charUUID}).
		Return([]gatt.RemoteCharacteristic{char}, nil)

	disconnected := make(chan struct{})
	peripheral := &testutils.MockPeripheral{}
	peripheral.On("Address").Return(addr)
	peripheral.On("DiscoverServices", profiledb.Default().ServiceUUIDs()).
		Return([]gatt.RemoteService{svc}, nil)
	peripheral.On("Disconnected").Return((<-chan struct{})(disconnected))
	peripheral.On("Close").Return(nil)

	return peripheral, char, disconnected
}

func (suite *SessionTestSuite) heartRateDevice(addr string) (*testutils.MockPeripheral, *testutils.MockCharacteristic, chan struct{}) {
	p, char, disconnected := suite.device(addr, profiledb.ServiceHeartRate, profiledb.CharHeartRateMeasurement)
	char.On("Subscribe", mock.Anything).Return(nil)
	char.On("Unsubscribe").Return(nil)
	return p, char, disconnected
}

func (suite *SessionTestSuite) start(sess *Session, conns <-chan connector.Connected) {
	go func() {
		suite.errCh <- sess.Run(suite.ctx, conns)
	}()
}

// stop cancels the session and returns Run's result.
func (suite *SessionTestSuite) stop() error {
	suite.cancel()
	select {
	case err := <-suite.errCh:
		return err
	case <-time.After(2 * time.Second):
		suite.FailNow("session did not stop after cancellation")
		return nil
	}
}

// waitErr waits for Run to return on its own.
func (suite *SessionTestSuite) waitErr() error {
	select {
	case err := <-suite.errCh:
		return err
	case <-time.After(2 * time.Second):
		suite.FailNow("session did not return")
		return nil
	}
}

func (suite *SessionTestSuite) waitWrites(n int) {
	suite.T().Helper()
	for i := 0; i < n; i++ {
		select {
		case <-suite.out.wrote:
		case <-time.After(2 * time.Second):
			suite.FailNow("timed out waiting for report writes")
		}
	}
}

func (suite *SessionTestSuite) assertReport(expected string) {
	testutils.NewTextAsserter(suite.T()).
		WithOptions(testutils.WithTrimSpace(true)).
		Assert(suite.out.String(), expected)
}

func (suite *SessionTestSuite) TestStreamsMetricsToReport() {
	peripheral, char, _ := suite.heartRateDevice("AA:BB:CC:DD:EE:FF")

	conns := make(chan connector.Connected, 1)
	conns <- connector.Connected{Addr: "AA:BB:CC:DD:EE:FF", Peripheral: peripheral}
	close(conns)

	suite.start(New(nil, &Options{Out: suite.out}, testutils.NewTestLogger()), conns)
	suite.waitWrites(3)

	suite.Require().True(char.Notify([]byte{0x00, 0x48}))
	suite.waitWrites(1)
	suite.Require().True(char.Notify([]byte{0x00, 0x50}))
	suite.waitWrites(1)

	suite.Require().NoError(suite.stop())

	suite.assertReport(`
initializing AA:BB:CC:DD:EE:FF
	service: Heart Rate
		characteristic: Heart Rate Measurement
heart_rate: 72 bpm
heart_rate: 80 bpm
`)

	char.AssertNumberOfCalls(suite.T(), "Unsubscribe", 1)
	peripheral.AssertCalled(suite.T(), "Close")
}

func (suite *SessionTestSuite) TestReportsMultipleDevices() {
	hrPeripheral, hrChar, _ := suite.heartRateDevice("AA:BB:CC:DD:EE:FF")

	pwPeripheral, pwChar, _ := suite.device("11:22:33:44:55:66",
		profiledb.ServiceCyclingPower, profiledb.CharCyclingPowerMeasurement)
	pwChar.On("Subscribe", mock.Anything).Return(nil)
	pwChar.On("Unsubscribe").Return(nil)

	conns := make(chan connector.Connected, 2)
	conns <- connector.Connected{Addr: "AA:BB:CC:DD:EE:FF", Peripheral: hrPeripheral}
	conns <- connector.Connected{Addr: "11:22:33:44:55:66", Peripheral: pwPeripheral}
	close(conns)

	suite.start(New(nil, &Options{Out: suite.out}, testutils.NewTestLogger()), conns)
	suite.waitWrites(6)

	suite.Require().True(hrChar.Notify([]byte{0x00, 0x48}))
	suite.waitWrites(1)
	suite.Require().True(pwChar.Notify([]byte{0x00, 0x00, 0xb4, 0x00}))
	suite.waitWrites(1)

	suite.Require().NoError(suite.stop())

	suite.assertReport(`
initializing AA:BB:CC:DD:EE:FF
	service: Heart Rate
		characteristic: Heart Rate Measurement
initializing 11:22:33:44:55:66
	service: Cycling Power
		characteristic: Cycling Power Measurement
heart_rate: 72 bpm
cycling_power: 180 W
`)

	hrPeripheral.AssertCalled(suite.T(), "Close")
	pwPeripheral.AssertCalled(suite.T(), "Close")
}

func (suite *SessionTestSuite) TestDecoderlessCharacteristicIsInert() {
	// CSC has no decoder yet; the characteristic is reported but no
	// subscription is installed.
	peripheral, char, _ := suite.device("AA:BB:CC:DD:EE:FF",
		profiledb.ServiceCyclingSpeedCadence, profiledb.CharCSCMeasurement)

	conns := make(chan connector.Connected, 1)
	conns <- connector.Connected{Addr: "AA:BB:CC:DD:EE:FF", Peripheral: peripheral}
	close(conns)

	suite.start(New(nil, &Options{Out: suite.out}, testutils.NewTestLogger()), conns)
	suite.waitWrites(3)

	suite.Require().NoError(suite.stop())

	suite.assertReport(`
initializing AA:BB:CC:DD:EE:FF
	service: Cycling Speed and Cadence
		characteristic: CSC Measurement
`)

	char.AssertNotCalled(suite.T(), "Subscribe", mock.Anything)
	char.AssertNotCalled(suite.T(), "Unsubscribe")
	peripheral.AssertCalled(suite.T(), "Close")
}

func (suite *SessionTestSuite) TestServiceDiscoveryFailureEndsRun() {
	peripheral := &testutils.MockPeripheral{}
	peripheral.On("Address").Return("AA:BB:CC:DD:EE:FF")
	peripheral.On("DiscoverServices", mock.Anything).
		Return(nil, errors.New("att timeout"))
	peripheral.On("Close").Return(nil)

	conns := make(chan connector.Connected, 1)
	conns <- connector.Connected{Addr: "AA:BB:CC:DD:EE:FF", Peripheral: peripheral}

	suite.start(New(nil, &Options{Out: suite.out}, testutils.NewTestLogger()), conns)

	err := suite.waitErr()
	suite.Require().Error(err)
	suite.Contains(err.Error(), "service discovery failed")

	// Teardown still drops the half-attached connection.
	peripheral.AssertCalled(suite.T(), "Close")
}

func (suite *SessionTestSuite) TestCharacteristicDiscoveryFailureEndsRun() {
	svc := &testutils.MockService{}
	svc.On("UUID").Return(profiledb.ServiceHeartRate)
	svc.On("DiscoverCharacteristics", mock.Anything).
		Return(nil, errors.New("att timeout"))

	peripheral := &testutils.MockPeripheral{}
	peripheral.On("Address").Return("AA:BB:CC:DD:EE:FF")
	peripheral.On("DiscoverServices", mock.Anything).
		Return([]gatt.RemoteService{svc}, nil)
	peripheral.On("Close").Return(nil)

	conns := make(chan connector.Connected, 1)
	conns <- connector.Connected{Addr: "AA:BB:CC:DD:EE:FF", Peripheral: peripheral}

	suite.start(New(nil, &Options{Out: suite.out}, testutils.NewTestLogger()), conns)

	err := suite.waitErr()
	suite.Require().Error(err)
	suite.Contains(err.Error(), "characteristic discovery failed")
}

func (suite *SessionTestSuite) TestSubscribeFailureEndsRun() {
	peripheral, char, _ := suite.device("AA:BB:CC:DD:EE:FF",
		profiledb.ServiceHeartRate, profiledb.CharHeartRateMeasurement)
	char.On("Subscribe", mock.Anything).Return(errors.New("gatt write failed"))

	conns := make(chan connector.Connected, 1)
	conns <- connector.Connected{Addr: "AA:BB:CC:DD:EE:FF", Peripheral: peripheral}

	suite.start(New(nil, &Options{Out: suite.out}, testutils.NewTestLogger()), conns)

	err := suite.waitErr()
	suite.Require().Error(err)
	suite.Contains(err.Error(), "failed to subscribe")

	peripheral.AssertCalled(suite.T(), "Close")
}

func (suite *SessionTestSuite) TestKeepsStreamingAfterConnsCloses() {
	conns := make(chan connector.Connected)
	close(conns)

	suite.start(New(nil, &Options{Out: suite.out}, testutils.NewTestLogger()), conns)

	// The closed stream must not end the run.
	select {
	case err := <-suite.errCh:
		suite.FailNow("session ended early", "err: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	suite.Require().NoError(suite.stop())
}

func (suite *SessionTestSuite) TestRecorderSeesDeliveriesAndLinkState() {
	peripheral, char, disconnected := suite.heartRateDevice("AA:BB:CC:DD:EE:FF")

	recorder, err := status.NewRecorder(16)
	suite.Require().NoError(err)

	conns := make(chan connector.Connected, 1)
	conns <- connector.Connected{Addr: "AA:BB:CC:DD:EE:FF", Peripheral: peripheral}
	close(conns)

	sess := New(nil, &Options{Out: suite.out, Recorder: recorder}, testutils.NewTestLogger())
	suite.start(sess, conns)
	suite.waitWrites(3)

	suite.Require().Eventually(func() bool {
		return len(recorder.Snapshot().Devices) == 1
	}, 2*time.Second, 10*time.Millisecond, "device never marked up")

	suite.Require().True(char.Notify([]byte{0x00, 0x48}))
	suite.waitWrites(1)

	suite.Require().Eventually(func() bool {
		return recorder.Snapshot().Delivered == 1
	}, 2*time.Second, 10*time.Millisecond, "delivery never recorded")

	close(disconnected)
	suite.Require().Eventually(func() bool {
		return len(recorder.Snapshot().Devices) == 0
	}, 2*time.Second, 10*time.Millisecond, "device never marked down")

	suite.Require().NoError(suite.stop())
}

func TestSessionTestSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}

func TestRenderMetricPlain(t *testing.T) {
	m := telemetry.Metric{Kind: telemetry.KindHeartRate, Value: 72}
	assert.Equal(t, "heart_rate: 72 bpm", renderMetric(m, false))
}

func TestRenderMetricColored(t *testing.T) {
	m := telemetry.Metric{Kind: telemetry.KindHeartRate, Value: 72}
	line := renderMetric(m, true)
	assert.Contains(t, line, "\x1b[31m")
	assert.Contains(t, line, "heart_rate")
	assert.Contains(t, line, ": 72 bpm")
}

func TestRenderMetricUnknownKindFallsBack(t *testing.T) {
	m := telemetry.Metric{Kind: telemetry.Kind(42), Value: 7}
	assert.Equal(t, m.String(), renderMetric(m, true))
}
