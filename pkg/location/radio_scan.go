package location

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"googlemaps.github.io/maps"
)

// getWiFiAccessPoints lists nearby access points using nmcli.
func getWiFiAccessPoints(ctx context.Context) ([]maps.WiFiAccessPoint, error) {
	if _, err := exec.LookPath("nmcli"); err != nil {
		return nil, fmt.Errorf("nmcli not found: %w", err)
	}

	output, err := exec.CommandContext(ctx, "nmcli", "-t", "-f", "BSSID,SIGNAL", "dev", "wifi", "list").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to run nmcli: %w", err)
	}
	return parseNmcliAccessPoints(string(output))
}

// parseNmcliAccessPoints parses terse nmcli output. BSSID colons are escaped
// as "\:" in terse mode, so the signal is taken from the last field.
func parseNmcliAccessPoints(output string) ([]maps.WiFiAccessPoint, error) {
	var aps []maps.WiFiAccessPoint
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		idx := strings.LastIndex(line, ":")
		if idx <= 0 {
			continue
		}
		mac := strings.ReplaceAll(line[:idx], `\:`, ":")
		if !isValidMAC(mac) {
			continue
		}
		signal, err := strconv.Atoi(strings.TrimSpace(line[idx+1:]))
		if err != nil {
			continue
		}
		aps = append(aps, maps.WiFiAccessPoint{
			MACAddress:     mac,
			SignalStrength: float64(signal),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan nmcli output: %w", err)
	}
	return aps, nil
}

// getCellTowers reads the serving cell of the given modem using mmcli.
func getCellTowers(ctx context.Context, modemIndex int) ([]maps.CellTower, error) {
	if _, err := exec.LookPath("mmcli"); err != nil {
		return nil, fmt.Errorf("mmcli not found: %w", err)
	}

	output, err := exec.CommandContext(ctx, "mmcli", "-m", strconv.Itoa(modemIndex), "--output-keyvalue").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to run mmcli for modem %d: %w", modemIndex, err)
	}
	return parseMmcliCellTower(string(output))
}

func parseMmcliCellTower(output string) ([]maps.CellTower, error) {
	var tower maps.CellTower
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "modem.3gpp.mcc":
			if v, err := strconv.Atoi(value); err == nil {
				tower.MobileCountryCode = v
			}
		case "modem.3gpp.mnc":
			if v, err := strconv.Atoi(value); err == nil {
				tower.MobileNetworkCode = v
			}
		case "modem.3gpp.lac":
			if v, err := strconv.ParseInt(value, 16, 32); err == nil {
				tower.LocationAreaCode = int(v)
			}
		case "modem.3gpp.cid":
			if v, err := strconv.ParseInt(value, 16, 64); err == nil {
				tower.CellID = int(v)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan mmcli output: %w", err)
	}

	if tower.MobileCountryCode == 0 || tower.MobileNetworkCode == 0 {
		return nil, errors.New("incomplete cell tower data")
	}
	return []maps.CellTower{tower}, nil
}

// isValidMAC checks for the "00:14:22:01:23:45" form.
func isValidMAC(mac string) bool {
	parts := strings.Split(mac, ":")
	if len(parts) != 6 {
		return false
	}
	for _, part := range parts {
		if len(part) != 2 {
			return false
		}
		if _, err := strconv.ParseUint(part, 16, 8); err != nil {
			return false
		}
	}
	return true
}
