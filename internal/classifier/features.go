package classifier

import "anomaly-monitor/internal/models"

// FeatureNames is the column order the models were trained with.
var FeatureNames = [FeatureCount]string{
	"duration", "protocol_type", "service", "flag", "src_bytes", "dst_bytes", "land",
	"wrong_fragment", "urgent", "hot", "num_failed_logins", "logged_in",
	"num_compromised", "root_shell", "su_attempted", "num_root", "num_file_creations",
	"num_shells", "num_access_files", "num_outbound_cmds", "is_host_login",
	"is_guest_login", "count", "srv_count", "serror_rate", "srv_serror_rate",
	"rerror_rate", "srv_rerror_rate", "same_srv_rate", "diff_srv_rate", "srv_diff_host_rate",
	"dst_host_count", "dst_host_srv_count", "dst_host_same_srv_rate",
	"dst_host_diff_srv_rate", "dst_host_same_src_port_rate", "dst_host_srv_diff_host_rate",
	"dst_host_serror_rate", "dst_host_srv_serror_rate", "dst_host_rerror_rate",
	"dst_host_srv_rerror_rate",
}

const FeatureCount = 41

var featureIndex = func() map[string]int {
	m := make(map[string]int, FeatureCount)
	for i, name := range FeatureNames {
		m[name] = i
	}
	return m
}()

// FeatureVector is a numeric row in FeatureNames order.
type FeatureVector []float64

// Get returns the named field, or false when the name is not in the schema
// or the vector is too short.
func (v FeatureVector) Get(name string) (float64, bool) {
	i, ok := featureIndex[name]
	if !ok || i >= len(v) {
		return 0, false
	}
	return v[i], true
}

func (v FeatureVector) set(name string, value float64) {
	v[featureIndex[name]] = value
}

type SynthesisMode int

const (
	// ProxyFeatures maps cpu and memory percent into the byte-count fields.
	ProxyFeatures SynthesisMode = iota
	// FixedFeatures uses constant byte counts regardless of the snapshot.
	FixedFeatures
)

// Synthesize builds the live-monitoring feature vector. Host metrics do not
// carry real flow features, so every field except the byte counts is held
// at the defaults below; predictions in this regime are an approximation.
func Synthesize(s models.MetricsSnapshot, mode SynthesisMode) FeatureVector {
	v := make(FeatureVector, FeatureCount)
	for _, name := range []string{
		"protocol_type", "service", "flag", "logged_in", "count", "srv_count",
		"same_srv_rate", "dst_host_count", "dst_host_srv_count",
		"dst_host_same_srv_rate", "dst_host_same_src_port_rate",
	} {
		v.set(name, 1)
	}

	switch mode {
	case FixedFeatures:
		v.set("src_bytes", 500)
		v.set("dst_bytes", 400)
	default:
		// truncation toward zero matches int() on the training side
		v.set("src_bytes", float64(int64(s.CPUPercent*100)))
		v.set("dst_bytes", float64(int64(s.MemoryPercent*100)))
	}
	return v
}
