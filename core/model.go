package core

// Valeur sentinelle de l'adresse serveur : aucun serveur iperf3 configuré.
const NoServer = "localhost"

// Settings regroupe les paramètres d'un point de mesure.
type Settings struct {
	IperfServerAdrs       string `json:"iperfServerAdrs" yaml:"iperf_server"`
	IperfServerBackupAdrs string `json:"iperfServerBackupAdrs,omitempty" yaml:"iperf_server_backup"`
	TestDuration          int    `json:"testDuration" yaml:"test_duration"` // secondes
	Interface             string `json:"interface,omitempty" yaml:"interface"`
}

// WifiReading est un instantané de l'association Wi-Fi courante.
type WifiReading struct {
	SSID           string  `json:"ssid"`
	BSSID          string  `json:"bssid"`
	RSSI           int     `json:"rssi"`
	SignalStrength int     `json:"signalStrength"`
	Channel        int     `json:"channel"`
	Band           float64 `json:"band"`
	Security       string  `json:"security"`
	TxRate         float64 `json:"txRate"`
	PhyMode        string  `json:"phyMode"`
	ChannelWidth   int     `json:"channelWidth"`
}

// ScanEntry est un réseau vu pendant un scan, marqué s'il est celui auquel on est associé.
type ScanEntry struct {
	WifiReading
	CurrentSSID bool `json:"currentSSID"`
}

// ThroughputResult : résultat normalisé d'un test iperf3.
// Les champs UDP restent nil pour un test TCP.
// En UDP, un champ absent du rapport iperf3 vaut nil (null en JSON) alors
// qu'un champ présent à zéro reste 0 : zéro paquet perdu n'est pas une absence.
type ThroughputResult struct {
	BitsPerSecond   float64  `json:"bitsPerSecond"`
	Retransmits     int      `json:"retransmits"`
	JitterMs        *float64 `json:"jitterMs"`
	LostPackets     *int     `json:"lostPackets"`
	PacketsReceived *int     `json:"packetsReceived"`
}

// ThroughputSet contient les quatre mesures (protocole x sens) d'un point.
type ThroughputSet struct {
	TCPDownload *ThroughputResult `json:"tcpDownload"`
	TCPUpload   *ThroughputResult `json:"tcpUpload"`
	UDPDownload *ThroughputResult `json:"udpDownload"`
	UDPUpload   *ThroughputResult `json:"udpUpload"`
}

// SurveyOutcome est la valeur terminale d'une exécution.
// Status vide = succès.
type SurveyOutcome struct {
	WifiData   *WifiReading   `json:"wifiData"`
	Throughput *ThroughputSet `json:"iperfData"`
	Status     string         `json:"status"`
}

const (
	MessageUpdate = "update"
	MessageDone   = "done"
)

// ProgressMessage : message de progression envoyé au client.
type ProgressMessage struct {
	Type   string `json:"type"`
	Header string `json:"header"`
	Status string `json:"status"`
}

// États du résultat consultable par polling.
const (
	StatePending = "pending"
	StateDone    = "done"
	StateError   = "error"
)

type SurveyResults struct {
	WifiData  *WifiReading   `json:"wifiData"`
	IperfData *ThroughputSet `json:"iperfData"`
}

// SurveyResult est ce que le client récupère avec action=results.
type SurveyResult struct {
	State       string         `json:"state"`
	Explanation string         `json:"explanation,omitempty"`
	Results     *SurveyResults `json:"results,omitempty"`
}
