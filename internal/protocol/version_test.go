package protocol

import "testing"

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantErr bool
	}{
		{"1.8.9", V1_8, false},
		{"47", V1_8, false},
		{"1.12.2", V1_12_2, false},
		{"340", V1_12_2, false},
		{"1.7.10", V1_7_6, false},
		{"335", 0, true},
		{"1.13", 0, true},
		{"", 0, true},
		{"47x", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseVersion(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseVersion(%q) = %s, want error", tt.in, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseVersion(%q) = %s, %v, want %s", tt.in, got, err, tt.want)
		}
	}
}

func TestSupportedVersionsAscending(t *testing.T) {
	vs := SupportedVersions()
	if len(vs) == 0 || vs[0] != V1_7_2 || vs[len(vs)-1] != Latest {
		t.Fatalf("unexpected bounds: %v", vs)
	}
	for i := 1; i < len(vs); i++ {
		if vs[i] <= vs[i-1] {
			t.Fatalf("versions not ascending at %d: %v", i, vs)
		}
	}
	if V1_12.Supported() {
		t.Error("1.12 (335) has no packet tables and must be unsupported")
	}
}

func TestFeatureTable(t *testing.T) {
	tests := []struct {
		feature Feature
		version Version
		want    bool
	}{
		{FeatureMoveOnGround, V1_7_6, false},
		{FeatureMoveOnGround, V1_8, true},
		{FeaturePackedPosition, V1_7_2, false},
		{FeaturePackedPosition, V1_12_2, true},
		{FeaturePaletteChunks, V1_8, false},
		{FeaturePaletteChunks, V1_9, true},
		{FeatureSpawnPlayerHeldItem, V1_8, true},
		{FeatureSpawnPlayerHeldItem, V1_9, false},
		{FeatureIntDimension, V1_9, false},
		{FeatureIntDimension, V1_9_1, true},
		{FeatureChunkBlockEntities, V1_9_2, false},
		{FeatureChunkBlockEntities, V1_9_4, true},
		{featureCount, V1_12_2, false},
	}

	for _, tt := range tests {
		if got := tt.version.Has(tt.feature); got != tt.want {
			t.Errorf("%s.Has(%s) = %v, want %v", tt.version, tt.feature, got, tt.want)
		}
	}
}

func TestRuleTable(t *testing.T) {
	tests := []struct {
		rule    Rule
		version Version
		want    NumberRule
	}{
		{RuleMoveDelta, V1_8, NumberRule{KindByte, 32}},
		{RuleMoveDelta, V1_9, NumberRule{KindShort, 4096}},
		{RuleAbsolutePosition, V1_8, NumberRule{KindInt, 32}},
		{RuleAbsolutePosition, V1_9, NumberRule{KindDouble, 1}},
		{RuleEntityID, V1_7_6, NumberRule{KindInt, 1}},
		{RuleEntityID, V1_8, NumberRule{KindVarInt, 1}},
		{RuleKeepAliveID, V1_7_2, NumberRule{KindInt, 1}},
		{RuleKeepAliveID, V1_12_1, NumberRule{KindVarInt, 1}},
		{RuleKeepAliveID, V1_12_2, NumberRule{KindLong, 1}},
		{RuleMobType, V1_10, NumberRule{KindByte, 1}},
		{RuleMobType, V1_11, NumberRule{KindVarInt, 1}},
	}

	for _, tt := range tests {
		if got := tt.version.Rule(tt.rule); got != tt.want {
			t.Errorf("%s rule %d = %+v, want %+v", tt.version, tt.rule, got, tt.want)
		}
	}
}

func TestServerboundIDs(t *testing.T) {
	tests := []struct {
		kind    PacketKind
		version Version
		want    int32
	}{
		{PacketKeepAliveResponse, V1_8, 0x00},
		{PacketKeepAliveResponse, V1_9, 0x0B},
		{PacketKeepAliveResponse, V1_12_2, 0x0B},
		{PacketPositionLookSend, V1_7_2, 0x06},
		{PacketPositionLookSend, V1_11_2, 0x0D},
		{PacketPositionLookSend, V1_12_1, 0x0E},
		{PacketClientStatus, V1_8, 0x16},
		{PacketClientStatus, V1_10, 0x03},
	}

	for _, tt := range tests {
		got, err := ServerboundID(tt.kind, tt.version)
		if err != nil || got != tt.want {
			t.Errorf("ServerboundID(%s, %s) = 0x%02X, %v, want 0x%02X", tt.kind, tt.version, got, err, tt.want)
		}
	}

	if _, err := ServerboundID(PacketTeleportConfirm, V1_8); err == nil {
		t.Error("teleport confirm has no id before 1.9")
	}
}
