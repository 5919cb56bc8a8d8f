package core

import (
	"fmt"
	"math"
)

// IsConsistent indique si deux lectures concernent le même point d'accès.
// RSSI et pourcentage varient forcément : ils ne sont pas comparés.
func IsConsistent(before, after WifiReading) bool {
	return before.BSSID == after.BSSID &&
		before.SSID == after.SSID &&
		before.Band == after.Band &&
		before.Channel == after.Channel
}

// Plage utilisée pour la conversion : -100 dBm => 0 %, -30 dBm => 100 %.
const (
	minSignalDBM = -100
	maxSignalDBM = -30
)

// RSSIToPercentage convertit un RSSI (dBm) en pourcentage 0..100.
func RSSIToPercentage(rssi int) int {
	val := int(math.Round(float64(rssi-minSignalDBM) * 100 / float64(maxSignalDBM-minSignalDBM)))
	if val < 0 {
		return 0
	}
	if val > 100 {
		return 100
	}
	return val
}

// PercentageToRSSI fait la conversion inverse de RSSIToPercentage.
func PercentageToRSSI(pct int) int {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return minSignalDBM + int(math.Round(float64(pct)*float64(maxSignalDBM-minSignalDBM)/100))
}

// AverageRounded renvoie la moyenne arrondie à l'entier le plus proche (0 si vide).
func AverageRounded(samples []int) int {
	if len(samples) == 0 {
		return 0
	}
	sum := 0
	for _, s := range samples {
		sum += s
	}
	return int(math.Round(float64(sum) / float64(len(samples))))
}

// FrequencyToChannel renvoie le canal et la bande (GHz) d'une fréquence en MHz.
func FrequencyToChannel(freqMHz int) (channel int, band float64) {
	switch {
	case freqMHz == 2484:
		return 14, 2.4
	case freqMHz >= 2412 && freqMHz < 2484:
		return (freqMHz - 2407) / 5, 2.4
	case freqMHz >= 5955 && freqMHz <= 7115:
		return (freqMHz - 5950) / 5, 6
	case freqMHz >= 5000 && freqMHz < 5955:
		return (freqMHz - 5000) / 5, 5
	}
	return 0, 0
}

// ToMbps formate un débit en Mbit/s avec deux décimales.
func ToMbps(bitsPerSecond float64) string {
	return fmt.Sprintf("%.2f", bitsPerSecond/1e6)
}
