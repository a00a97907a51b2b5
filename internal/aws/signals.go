package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// SignalRecorder publishes integrity signals (amount mismatches, corrupt order state) as
// CloudWatch metrics so alarms can page an operator.
type SignalRecorder struct {
	CloudWatch CloudWatchAPI
	Namespace  string
	nowFunc    func() time.Time
}

// NewSignalRecorder returns a recorder writing into namespace.
func NewSignalRecorder(client CloudWatchAPI, namespace string) *SignalRecorder {
	return &SignalRecorder{
		CloudWatch: client,
		Namespace:  namespace,
		nowFunc:    time.Now,
	}
}

// Record emits a count of 1 for signal, dimensioned by signal name only. Order ids go to the
// logs, not to metric dimensions.
func (r *SignalRecorder) Record(ctx context.Context, signal string) error {
	now := r.nowFunc()
	_, err := r.CloudWatch.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: awsString(r.Namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: awsString("IntegritySignal"),
				Dimensions: []cwtypes.Dimension{
					{Name: awsString("Signal"), Value: awsString(signal)},
				},
				Timestamp: &now,
				Unit:      cwtypes.StandardUnitCount,
				Value:     float64Ptr(1),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("put metric data: %w", err)
	}
	return nil
}

func float64Ptr(f float64) *float64 { return &f }
