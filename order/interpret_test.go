package order

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"fix-market-maker/fix"
)

func report(status string, extra ...string) fix.Message {
	m := fix.Message{fix.FieldMsgType: fix.MsgTypeExecutionReport, fix.FieldOrdStatus: status}
	for i := 0; i+1 < len(extra); i += 2 {
		m[extra[i]] = extra[i+1]
	}
	return m
}

func TestInterpret(t *testing.T) {
	cases := []struct {
		name      string
		msg       fix.Message
		remaining float64
		state     State
		delta     float64
	}{
		{"filled takes remainder", report(fix.StatusFilled), 0.4, Filled, 0.4},
		{"done for day takes remainder", report(fix.StatusDoneForDay), 0.25, Filled, 0.25},
		{"partial uses last shares", report(fix.StatusPartiallyFilled, fix.FieldLastShares, "0.1"), 1, Open, 0.1},
		{"partial without last shares", report(fix.StatusPartiallyFilled), 1, Open, 0},
		{"rejected", report(fix.StatusRejected), 1, Rejected, 0},
		{"canceled", report(fix.StatusCanceled), 1, Canceled, 0},
		{"new", report(fix.StatusNew), 1, Open, 0},
		{"negative remainder clamps", report(fix.StatusFilled), -0.01, Filled, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st, delta := Interpret(tc.msg, tc.remaining)
			assert.Equal(t, tc.state, st)
			assert.InDelta(t, tc.delta, delta, 1e-12)
		})
	}
}

func TestFillConvergesToSize(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 200; trial++ {
		size := float64(rng.Intn(1_000_000)+1) / 1e6
		o := newOrder("c", fix.SideBuy, 100, size, time.Now())

		for i := 0; i < rng.Intn(6); i++ {
			part := o.Remaining() * rng.Float64() / 2
			st, delta := Interpret(report(fix.StatusPartiallyFilled, fix.FieldLastShares, fix.FormatDecimal(part)), o.Remaining())
			o.addFill(delta, st == Filled)
		}
		st, delta := Interpret(report(fix.StatusDoneForDay), o.Remaining())
		o.addFill(delta, st == Filled)

		assert.Equal(t, size, o.Filled(), "trial %d", trial)
	}
}
