package testbackend

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/difyz9/fail2ban-web/pkg/f2bapi"
)

func (b *Backend) domainRoutes(r chi.Router) {
	r.Get("/stats", b.stats)
	r.Get("/stats/today", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]int{"bans": 3, "unbans": 1, "failed_attempts": 42})
	})
	r.Get("/stats/history", func(w http.ResponseWriter, r *http.Request) {
		days, _ := strconv.Atoi(r.URL.Query().Get("days"))
		ok(w, map[string]any{"days": days, "points": []int{}})
	})

	r.Get("/banned-ips", b.listBans)
	r.Post("/banned-ips/ban", b.ban)
	r.Post("/banned-ips/batch-unban", b.batchUnban)
	r.Get("/banned-ips/{ip}", b.banDetails)
	r.Post("/banned-ips/{ip}/unban", b.unban)

	r.Get("/jails", b.listJails)
	r.Get("/jails/{name}", b.getJail)
	r.Put("/jails/{name}", b.updateJail)
	r.Post("/jails/{name}/toggle", b.toggleJail)
	r.Post("/jails/{name}/restart", func(w http.ResponseWriter, r *http.Request) { ok(w, nil) })
	r.Get("/jails/{name}/status", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{"name": chi.URLParam(r, "name"), "currently_banned": 1})
	})

	r.Get("/logs", b.listLogs)
	r.Get("/logs/realtime", func(w http.ResponseWriter, r *http.Request) { ok(w, sampleLogs()[:1]) })
	r.Get("/logs/download", func(w http.ResponseWriter, r *http.Request) { ok(w, sampleLogs()) })
	r.Delete("/logs", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("before_date") == "" {
			fail(w, http.StatusBadRequest, "before_date is required")
			return
		}
		ok(w, nil)
	})

	r.Get("/whitelist", b.listWhitelist)
	r.Post("/whitelist", b.addWhitelist)
	r.Post("/whitelist/batch", func(w http.ResponseWriter, r *http.Request) { ok(w, nil) })
	r.Put("/whitelist/{id}", b.updateWhitelist)
	r.Delete("/whitelist/{id}", b.removeWhitelist)

	r.Get("/analysis/threat/{ip}", func(w http.ResponseWriter, r *http.Request) {
		ok(w, f2bapi.ThreatAnalysis{
			IP:              chi.URLParam(r, "ip"),
			RiskScore:       72.5,
			ThreatTypes:     []string{"ssh-bruteforce"},
			GeoLocation:     f2bapi.GeoLocation{Country: "NL"},
			Recommendations: []string{"keep banned"},
		})
	})
	r.Get("/analysis/trends", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{"period": r.URL.Query().Get("period")})
	})
	r.Get("/analysis/geo-stats", func(w http.ResponseWriter, r *http.Request) { ok(w, map[string]int{"NL": 1}) })
	r.Get("/analysis/attack-types", func(w http.ResponseWriter, r *http.Request) { ok(w, map[string]int{"ssh": 6}) })
	r.Post("/analysis/security-report", func(w http.ResponseWriter, r *http.Request) { ok(w, map[string]string{"status": "generated"}) })

	r.Get("/system/info", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]string{"version": "0.10.2", "hostname": "gw-1"})
	})
	r.Get("/system/config", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		cfg := b.sysConfig
		b.mu.Unlock()
		ok(w, cfg)
	})
	r.Put("/system/config", func(w http.ResponseWriter, r *http.Request) {
		var cfg f2bapi.SystemConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			fail(w, http.StatusBadRequest, "invalid request body")
			return
		}
		b.mu.Lock()
		b.sysConfig = cfg
		b.mu.Unlock()
		ok(w, nil)
	})
	r.Post("/system/restart", func(w http.ResponseWriter, r *http.Request) { ok(w, nil) })
	r.Get("/system/status", func(w http.ResponseWriter, r *http.Request) { ok(w, map[string]string{"fail2ban": "running"}) })
	r.Post("/system/test-config", func(w http.ResponseWriter, r *http.Request) { ok(w, map[string]bool{"valid": true}) })
}

func (b *Backend) stats(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	active := 0
	for _, j := range b.jails {
		if j.Enabled {
			active++
		}
	}
	s := f2bapi.SystemStats{TotalBannedIPs: len(b.bans), ActiveJails: active, FailedAttemptsToday: 42, SystemUptime: "3d 4h"}
	b.mu.Unlock()
	ok(w, s)
}

func (b *Backend) listBans(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	items := make([]f2bapi.BannedIP, 0, len(b.bans))
	for _, ip := range b.bans {
		items = append(items, ip)
	}
	b.mu.Unlock()
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	if s := r.URL.Query().Get("search"); s != "" {
		kept := items[:0]
		for _, it := range items {
			if strings.Contains(it.IP, s) {
				kept = append(kept, it)
			}
		}
		items = kept
	}
	if jail := r.URL.Query().Get("filter[jail]"); jail != "" {
		kept := items[:0]
		for _, it := range items {
			if it.Jail == jail {
				kept = append(kept, it)
			}
		}
		items = kept
	}
	ok(w, pageOf(r, items))
}

func (b *Backend) banDetails(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	ban, found := b.bans[chi.URLParam(r, "ip")]
	b.mu.Unlock()
	if !found {
		fail(w, http.StatusNotFound, "ip not banned")
		return
	}
	ok(w, ban)
}

func (b *Backend) ban(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IP      string `json:"ip"`
		Jail    string `json:"jail"`
		BanTime int    `json:"ban_time"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IP == "" || req.Jail == "" {
		fail(w, http.StatusBadRequest, "ip and jail are required")
		return
	}
	b.mu.Lock()
	b.nextID++
	b.bans[req.IP] = f2bapi.BannedIP{ID: b.nextID + 100, IP: req.IP, Jail: req.Jail, BanTime: time.Now().UTC().Format(time.RFC3339), IsActive: true}
	b.mu.Unlock()
	ok(w, nil)
}

func (b *Backend) unban(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	b.mu.Lock()
	_, found := b.bans[ip]
	delete(b.bans, ip)
	b.mu.Unlock()
	if !found {
		fail(w, http.StatusNotFound, "ip not banned")
		return
	}
	ok(w, nil)
}

func (b *Backend) batchUnban(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IPs []string `json:"ips"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	b.mu.Lock()
	for _, ip := range req.IPs {
		delete(b.bans, ip)
	}
	b.mu.Unlock()
	ok(w, nil)
}

func (b *Backend) listJails(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	out := make([]f2bapi.JailConfig, 0, len(b.jails))
	for _, j := range b.jails {
		out = append(out, j)
	}
	b.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	ok(w, out)
}

func (b *Backend) getJail(w http.ResponseWriter, r *http.Request) {
	j, found := b.Jail(chi.URLParam(r, "name"))
	if !found {
		fail(w, http.StatusNotFound, "jail not found")
		return
	}
	ok(w, j)
}

func (b *Backend) updateJail(w http.ResponseWriter, r *http.Request) {
	var upd f2bapi.JailUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := chi.URLParam(r, "name")
	b.mu.Lock()
	defer b.mu.Unlock()
	j, found := b.jails[name]
	if !found {
		fail(w, http.StatusNotFound, "jail not found")
		return
	}
	if upd.Enabled != nil {
		j.Enabled = *upd.Enabled
	}
	if upd.Filter != nil {
		j.Filter = *upd.Filter
	}
	if upd.LogPath != nil {
		j.LogPath = *upd.LogPath
	}
	if upd.MaxRetry != nil {
		j.MaxRetry = *upd.MaxRetry
	}
	if upd.FindTime != nil {
		j.FindTime = *upd.FindTime
	}
	if upd.BanTime != nil {
		j.BanTime = *upd.BanTime
	}
	if upd.Backend != nil {
		j.Backend = *upd.Backend
	}
	if upd.Action != nil {
		j.Action = *upd.Action
	}
	b.jails[name] = j
	ok(w, nil)
}

func (b *Backend) toggleJail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := chi.URLParam(r, "name")
	b.mu.Lock()
	defer b.mu.Unlock()
	j, found := b.jails[name]
	if !found {
		fail(w, http.StatusNotFound, "jail not found")
		return
	}
	j.Enabled = req.Enabled
	b.jails[name] = j
	ok(w, nil)
}

func sampleLogs() []f2bapi.LogEntry {
	return []f2bapi.LogEntry{
		{ID: 2, Timestamp: "2024-05-01T10:00:00Z", Level: "NOTICE", Jail: "sshd", Message: "Ban 203.0.113.7", IP: "203.0.113.7"},
		{ID: 1, Timestamp: "2024-05-01T09:59:58Z", Level: "INFO", Jail: "sshd", Message: "Found 203.0.113.7", IP: "203.0.113.7"},
	}
}

func (b *Backend) listLogs(w http.ResponseWriter, r *http.Request) {
	ok(w, pageOf(r, sampleLogs()))
}

func (b *Backend) listWhitelist(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	items := append([]f2bapi.WhitelistEntry(nil), b.whitelist...)
	b.mu.Unlock()
	ok(w, pageOf(r, items))
}

func (b *Backend) addWhitelist(w http.ResponseWriter, r *http.Request) {
	var in f2bapi.WhitelistInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.IP == "" {
		fail(w, http.StatusBadRequest, "ip is required")
		return
	}
	b.mu.Lock()
	b.nextID++
	e := f2bapi.WhitelistEntry{ID: b.nextID, IP: in.IP, Description: in.Description, CreatedAt: time.Now().UTC().Format(time.RFC3339), CreatedBy: AdminUser}
	b.whitelist = append(b.whitelist, e)
	b.mu.Unlock()
	ok(w, e)
}

func (b *Backend) whitelistIndex(r *http.Request) int {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	for i, e := range b.whitelist {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func (b *Backend) updateWhitelist(w http.ResponseWriter, r *http.Request) {
	var in f2bapi.WhitelistInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		fail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.whitelistIndex(r)
	if i < 0 {
		fail(w, http.StatusNotFound, "entry not found")
		return
	}
	if in.IP != "" {
		b.whitelist[i].IP = in.IP
	}
	b.whitelist[i].Description = in.Description
	ok(w, b.whitelist[i])
}

func (b *Backend) removeWhitelist(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.whitelistIndex(r)
	if i < 0 {
		fail(w, http.StatusNotFound, "entry not found")
		return
	}
	b.whitelist = append(b.whitelist[:i], b.whitelist[i+1:]...)
	ok(w, nil)
}

// Whitelisted reports the whitelisted IPs in insertion order.
func (b *Backend) Whitelisted() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.whitelist))
	for _, e := range b.whitelist {
		out = append(out, e.IP)
	}
	return out
}
