package fixedpoint

import (
	"math/big"
	"testing"
)

func TestParseAndString(t *testing.T) {
	tests := []struct {
		in   string
		want Micros
		str  string
	}{
		{"100.000000", 100_000_000, "100.000000"},
		{"99.5", 99_500_000, "99.500000"},
		{"0.000001", 1, "0.000001"},
		{"350", 350_000_000, "350.000000"},
		{"-12.25", -12_250_000, "-12.250000"},
	}

	for _, tt := range tests {
		got, err := Parse(tt.in)
		if err != nil {
			t.Fatalf("Parse(%q): unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %d, want %d", tt.in, got, tt.want)
		}
		if got.String() != tt.str {
			t.Errorf("String() = %q, want %q", got.String(), tt.str)
		}
	}
}

func TestParse_Rejects(t *testing.T) {
	for _, in := range []string{"", "1.1234567", "abc", "1.2.3"} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q): expected error", in)
		}
	}
}

func TestApplyBps(t *testing.T) {
	gross := FromUnits(110)

	if fee := ApplyBps(gross, 1000); fee != FromUnits(11) {
		t.Errorf("10%% of 110 = %s, want 11.000000", fee)
	}
	if all := ApplyBps(gross, 10000); all != gross {
		t.Errorf("10000 bps should be identity, got %s", all)
	}
	if none := ApplyBps(gross, 0); none != 0 {
		t.Errorf("0 bps should be zero, got %s", none)
	}
}

func TestAccrueAndEntitlement(t *testing.T) {
	// 99.000000 net over 1000 shares: 600/400 holders split 59.4/39.6.
	net, _ := Parse("99.000000")
	acc := AccrueDelta(net, 1000)

	a := PendingMicros(600, acc, new(big.Int))
	b := PendingMicros(400, acc, new(big.Int))

	if want, _ := Parse("59.400000"); a != want {
		t.Errorf("600-share entitlement = %s, want 59.400000", a)
	}
	if want, _ := Parse("39.600000"); b != want {
		t.Errorf("400-share entitlement = %s, want 39.600000", b)
	}
	if a+b != net {
		t.Errorf("fully-sold raise should conserve net exactly: %s + %s != %s", a, b, net)
	}
}

func TestAccrueDelta_DustBound(t *testing.T) {
	// 7 shares and an amount that does not divide evenly.
	net := Micros(100)
	acc := AccrueDelta(net, 7)

	total := Micros(0)
	for _, shares := range []int64{3, 2, 2} {
		total += PendingMicros(shares, acc, new(big.Int))
	}

	dust := net - total
	if dust < 0 || int64(dust) >= 7 {
		t.Errorf("dust = %d micros, want 0 <= dust < totalShares", dust)
	}
}

func TestAccumulator_NoPrecisionLossAt128Bits(t *testing.T) {
	// A large payment over a single share forces the accumulator itself
	// past 64 bits; entitlement must still come back exact.
	net := Micros(1_000_000_000_000_000) // one billion units
	acc := AccrueDelta(net, 1)

	if acc.IsInt64() {
		t.Fatal("expected accumulator to exceed int64 range in this scenario")
	}
	if got := PendingMicros(1, acc, new(big.Int)); got != net {
		t.Errorf("entitlement = %s, want %s", got, net)
	}
}

func TestPendingMicros_DebtCheckpoint(t *testing.T) {
	net, _ := Parse("50.000000")
	acc := AccrueDelta(net, 100)

	debt := Entitlement(40, acc)
	if got := PendingMicros(40, acc, debt); got != 0 {
		t.Errorf("pending after checkpoint = %s, want 0", got)
	}

	// A second accrual makes only the delta claimable.
	acc.Add(acc, AccrueDelta(net, 100))
	if got := PendingMicros(40, acc, debt); got != FromUnits(20) {
		t.Errorf("pending after second accrual = %s, want 20.000000", got)
	}
}

func TestFormatParseBigRoundTrip(t *testing.T) {
	acc := AccrueDelta(Micros(123_456_789), 37)

	parsed, err := ParseBig(FormatBig(acc))
	if err != nil {
		t.Fatalf("ParseBig: %v", err)
	}
	if parsed.Cmp(acc) != 0 {
		t.Errorf("round trip changed value: %s != %s", parsed, acc)
	}

	zero, err := ParseBig("")
	if err != nil || zero.Sign() != 0 {
		t.Errorf("empty string should parse as zero, got %v, %v", zero, err)
	}
	if _, err := ParseBig("not-a-number"); err == nil {
		t.Error("expected error for malformed value")
	}
}

func TestMulDays(t *testing.T) {
	rate := FromUnits(100)
	rent, err := MulDays(rate, 3)
	if err != nil {
		t.Fatalf("MulDays: %v", err)
	}
	if rent != FromUnits(300) {
		t.Errorf("rent = %s, want 300.000000", rent)
	}

	if _, err := MulDays(Micros(1<<62), 1000); err == nil {
		t.Error("expected overflow error")
	}
}
