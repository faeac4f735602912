package webmonitor

import (
	"encoding/json"
	"strings"
)

// rtcPageConfig is rendered into the monitor screen's script.
type rtcPageConfig struct {
	Enabled    bool     `json:"enabled"`
	ICEServers []string `json:"iceServers"`
}

// renderIndex fills the WebRTC settings into indexHTML. json.Marshal escapes
// '<' and '>', so the values cannot end the script element.
func renderIndex(cfg rtcPageConfig) string {
	if cfg.ICEServers == nil {
		cfg.ICEServers = []string{}
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		data = []byte(`{"enabled":false,"iceServers":[]}`)
	}
	return strings.Replace(indexHTML, "{{RTC_CONFIG}}", string(data), 1)
}

const indexHTML = `
<!DOCTYPE html>
<html>
<head>
    <title>Face Watch</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <link rel="stylesheet" href="/assets/monitor.css">
    <style>
        body { margin: 0; background: #111; color: #eee; font-family: sans-serif; }
        .app { max-width: 720px; margin: 0 auto; padding: 16px; }
        #preview { width: 100%; height: auto; background: #000; display: block; }
        .labels { display: flex; justify-content: space-between; margin-top: 12px; font-size: 18px; }
        #toast { position: fixed; left: 50%; bottom: 32px; transform: translateX(-50%);
                 padding: 10px 18px; border-radius: 6px; background: rgba(0,0,0,0.85);
                 color: #fff; display: none; }
    </style>
</head>
<body>
    <div class="app">
        <img id="preview" src="/stream" alt="Camera preview">
        <div class="labels">
            <span id="face-status"></span>
            <span id="absent-count"></span>
        </div>
    </div>
    <div id="toast" role="status"></div>

    <script>
    (function () {
        const statusEl = document.getElementById('face-status');
        const countEl = document.getElementById('absent-count');
        const toastEl = document.getElementById('toast');
        let toastTimer = null;
        let leaving = false;

        function apply(ev) {
            if (leaving) return;
            switch (ev.type) {
            case 'snapshot':
                if (ev.terminal) { leave(ev.location || '/done'); return; }
                statusEl.textContent = ev.status || '';
                countEl.textContent = ev.count_label || '';
                break;
            case 'status':
                statusEl.textContent = ev.status || '';
                break;
            case 'count':
                countEl.textContent = ev.count_label || '';
                break;
            case 'toast':
                toastEl.textContent = ev.message;
                toastEl.style.display = 'block';
                clearTimeout(toastTimer);
                toastTimer = setTimeout(function () { toastEl.style.display = 'none'; }, ev.duration_ms || 2000);
                break;
            case 'navigate':
                leave(ev.location || '/done');
                break;
            }
        }

        function leave(location) {
            leaving = true;
            // replace() keeps the monitor screen out of the history.
            window.location.replace(location);
        }

        const source = new EventSource('/api/state/stream');
        source.onmessage = function (msg) {
            try { apply(JSON.parse(msg.data)); } catch (e) { console.warn('bad event', e); }
        };

        const rtcConfig = {{RTC_CONFIG}};
        if (rtcConfig.enabled && window.RTCPeerConnection) {
            const pc = new RTCPeerConnection({
                iceServers: rtcConfig.iceServers.map(function (url) { return { urls: url }; }),
            });
            const channel = pc.createDataChannel('visibility');
            channel.onmessage = function (msg) {
                try { apply(JSON.parse(msg.data)); } catch (e) { console.warn('bad event', e); }
            };
            pc.createOffer()
                .then(function (offer) { return pc.setLocalDescription(offer); })
                .then(function () {
                    return new Promise(function (resolve) {
                        if (pc.iceGatheringState === 'complete') { resolve(); return; }
                        pc.addEventListener('icegatheringstatechange', function () {
                            if (pc.iceGatheringState === 'complete') resolve();
                        });
                    });
                })
                .then(function () {
                    return fetch('/api/webrtc/offer', {
                        method: 'POST',
                        headers: { 'Content-Type': 'application/json' },
                        body: JSON.stringify(pc.localDescription),
                    });
                })
                .then(function (resp) { if (!resp.ok) throw new Error('offer rejected'); return resp.json(); })
                .then(function (answer) { return pc.setRemoteDescription(answer); })
                .catch(function (e) { console.info('WebRTC unavailable, using SSE only', e); pc.close(); });
        }
    })();
    </script>
</body>
</html>
`

const doneHTML = `
<!DOCTYPE html>
<html>
<head>
    <title>Face Watch</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <link rel="stylesheet" href="/assets/monitor.css">
    <style>
        body { margin: 0; background: #111; color: #eee; font-family: sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh; }
    </style>
</head>
<body>
    <h1 id="terminal">Face not visible. Monitoring has ended.</h1>
</body>
</html>
`
