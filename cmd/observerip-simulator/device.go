package main

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/chrissnell/observerip/internal/observerip"
)

// Device is a simulated base unit: a probe responder and the settings
// pages of its web interface.
type Device struct {
	Info     observerip.Info
	emulator *WeatherEmulator
	logger   *zap.SugaredLogger

	mu    sync.Mutex
	pages map[string]map[string]string
	// selects lists the fields rendered as dropdowns, with their option labels.
	selects map[string]map[string]string
}

func NewDevice(info observerip.Info, emulator *WeatherEmulator, logger *zap.SugaredLogger) *Device {
	return &Device{
		Info:     info,
		emulator: emulator,
		logger:   logger,
		pages: map[string]map[string]string{
			observerip.PageNetwork: {
				"dhcp":     boolString(info.DHCP),
				"staticIP": info.StaticIPAddr,
				"netmask":  info.Netmask,
				"gateway":  info.Gateway,
				"dns":      info.DNS,
			},
			observerip.PageCredentials: {
				"stationID": "KSIM0001",
				"stationPW": "simulator",
			},
			observerip.PageStation: {
				"WRFreq":           "915",
				"dst":              "0",
				"timezone":         "-8",
				"unit_Pressure":    "1",
				"unit_Temperature": "1",
				"unit_Wind":        "1",
				"unit_Rain":        "1",
			},
			observerip.PageCalibration: observerip.DefaultCalibration(),
		},
		selects: map[string]map[string]string{
			"dhcp": {"0": "Disable", "1": "Enable"},
			"dst":  {"0": "Disable", "1": "Enable"},
		},
	}
}

func boolString(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Router serves the device pages.
func (d *Device) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/"+observerip.PageLiveData, d.liveData).Methods(http.MethodGet)
	r.HandleFunc("/"+observerip.PageCalibrationDefault, d.resetCalibration).Methods(http.MethodGet)
	r.HandleFunc("/{page}", d.page).Methods(http.MethodGet)
	r.HandleFunc("/{page}", d.submit).Methods(http.MethodPost)
	return r
}

func (d *Device) liveData(w http.ResponseWriter, r *http.Request) {
	d.writePage(w, observerip.PageLiveData, d.emulator.LiveData())
}

func (d *Device) resetCalibration(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	d.pages[observerip.PageCalibration] = observerip.DefaultCalibration()
	d.mu.Unlock()

	d.logger.Info("calibration reset to factory defaults")
	io.WriteString(w, "<html><body>OK</body></html>\n")
}

func (d *Device) page(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["page"]

	d.mu.Lock()
	values, ok := d.pages[name]
	snapshot := make(map[string]string, len(values))
	for k, v := range values {
		snapshot[k] = v
	}
	d.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	d.writePage(w, name, snapshot)
}

// submit stores the posted fields the page already knows. Unknown fields
// and the Apply button are ignored.
func (d *Device) submit(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["page"]
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	d.mu.Lock()
	values, ok := d.pages[name]
	if ok {
		applyForm(values, r.PostForm)
	}
	d.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	d.logger.Infof("settings on %s updated: %s", name, r.PostForm.Encode())
	d.page(w, r)
}

func applyForm(values map[string]string, form url.Values) {
	for k := range form {
		if _, known := values[k]; known {
			values[k] = form.Get(k)
		}
	}
}

// writePage renders values one element per line, as the device does.
func (d *Device) writePage(w io.Writer, name string, values map[string]string) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b bytes.Buffer
	fmt.Fprintf(&b, "<html><body>\n<form method=\"post\" action=\"%s\">\n", name)
	for _, k := range keys {
		v := values[k]
		options, isSelect := d.selects[k]
		if !isSelect {
			fmt.Fprintf(&b, "<input type=\"text\" name=\"%s\" value=\"%s\">\n", k, html.EscapeString(v))
			continue
		}

		fmt.Fprintf(&b, "<select name=\"%s\">\n", k)
		optKeys := make([]string, 0, len(options))
		for o := range options {
			optKeys = append(optKeys, o)
		}
		sort.Strings(optKeys)
		for _, o := range optKeys {
			selected := ""
			if o == v {
				selected = " selected=\"selected\""
			}
			fmt.Fprintf(&b, "<option value=\"%s\"%s>%s</option>\n", o, selected, options[o])
		}
		b.WriteString("</select>\n")
	}
	b.WriteString("<input type=\"submit\" name=\"Apply\" value=\"Apply\">\n</form>\n</body></html>\n")
	w.Write(b.Bytes())
}

// Calibration returns a copy of the current calibration.
func (d *Device) Calibration() map[string]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]string)
	for k, v := range d.pages[observerip.PageCalibration] {
		out[k] = v
	}
	return out
}

// ServeProbes answers discovery requests on conn until ctx is done.
// Anything other than the probe signature is ignored.
func (d *Device) ServeProbes(ctx context.Context, conn *net.UDPConn) {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	reply := d.Info.Encode()
	buf := make([]byte, 64)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() == nil {
				d.logger.Errorf("probe listener: %v", err)
			}
			return
		}
		if !bytes.Equal(buf[:n], observerip.ProbeSignature) {
			d.logger.Debugf("ignoring %d byte datagram from %s", n, addr)
			continue
		}
		if _, err := conn.WriteToUDP(reply, addr); err != nil {
			d.logger.Errorf("probe reply to %s: %v", addr, err)
			continue
		}
		d.logger.Debugf("answered probe from %s", addr)
	}
}

// formatTransfer renders data as transfer file lines, with the device's
// address on an observerip= line.
func formatTransfer(data map[string]string, deviceIP string) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, data[k])
	}
	if deviceIP != "" {
		fmt.Fprintf(&b, "observerip=%s\n", deviceIP)
	}
	return b.String()
}
