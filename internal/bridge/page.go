package bridge

import (
	"encoding/json"
	"net/http"
)

// HandlePage serves the player page. It loads the Web Playback SDK, opens the
// websocket at wsPath and executes commands sent by the Hub.
func (h *Hub) HandlePage(wsPath string) http.HandlerFunc {
	page := []byte(pageHead + "const WS_PATH = " + jsString(wsPath) + ";\n" + pageScript)
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(page)
	}
}

// jsString quotes s as a JavaScript string literal. json escapes '<' so the
// value cannot close the script element.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>SpotyFusion Player</title>
<style>
body { font-family: sans-serif; background: #121212; color: #fff; text-align: center; padding-top: 4em; }
button { background: #1db954; color: #fff; border: 0; border-radius: 2em; padding: 0.8em 2em; font-size: 1em; cursor: pointer; }
#status { margin-top: 1em; color: #b3b3b3; }
</style>
</head>
<body>
<h1>SpotyFusion Player</h1>
<p>Keep this page open while playing.</p>
<button id="activate">Enable audio</button>
<div id="status">connecting...</div>
<script>
`

const pageScript = `
const players = {};
const tokenWaiters = {};
let ws;

function setStatus(text) {
  document.getElementById("status").textContent = text;
}

function send(msg) {
  if (ws && ws.readyState === WebSocket.OPEN) {
    ws.send(JSON.stringify(msg));
  }
}

function reply(msg, ok, error) {
  send({ type: "result", id: msg.id, device: msg.device, ok: !!ok, error: error || "" });
}

function forward(device, event, payload) {
  send({ type: "event", device: device, event: event, payload: payload || {} });
}

function requestToken(device) {
  const id = Math.random().toString(36).slice(2);
  return new Promise(function (resolve, reject) {
    tokenWaiters[id] = { resolve: resolve, reject: reject };
    send({ type: "token_request", id: id, device: device });
  });
}

function createPlayer(msg) {
  const device = msg.device;
  const p = new Spotify.Player({
    name: msg.name,
    volume: msg.volume,
    getOAuthToken: function (cb) {
      requestToken(device).then(cb).catch(function (e) { console.warn("token", e); });
    },
  });
  p.addListener("ready", function (e) {
    setStatus("ready");
    forward(device, "ready", { device_id: e.device_id });
  });
  p.addListener("not_ready", function (e) {
    setStatus("offline");
    forward(device, "not_ready", { device_id: e.device_id });
  });
  ["initialization_error", "authentication_error", "account_error", "playback_error"].forEach(function (name) {
    p.addListener(name, function (e) {
      forward(device, name, { message: e.message });
    });
  });
  p.addListener("player_state_changed", function (s) {
    if (!s) { return; }
    const track = s.track_window && s.track_window.current_track;
    forward(device, "player_state_changed", {
      paused: s.paused,
      position: s.position,
      track_uri: track ? track.uri : "",
    });
  });
  players[device] = p;
}

function run(msg, fn) {
  const p = players[msg.device];
  if (!p) {
    reply(msg, false, "unknown device");
    return;
  }
  Promise.resolve()
    .then(function () { return fn(p); })
    .then(function (result) { reply(msg, result === undefined ? true : result); })
    .catch(function (e) { reply(msg, false, String(e && e.message || e)); });
}

function handle(msg) {
  switch (msg.type) {
    case "create":
      createPlayer(msg);
      break;
    case "connect":
      run(msg, function (p) { return p.connect(); });
      break;
    case "disconnect":
      if (players[msg.device]) {
        players[msg.device].disconnect();
        delete players[msg.device];
      }
      break;
    case "pause":
      run(msg, function (p) { return p.pause(); });
      break;
    case "activate":
      run(msg, function (p) { return p.activateElement(); });
      break;
    case "token": {
      const waiter = tokenWaiters[msg.id];
      delete tokenWaiters[msg.id];
      if (waiter) {
        if (msg.error) { waiter.reject(msg.error); } else { waiter.resolve(msg.token); }
      }
      break;
    }
  }
}

function open() {
  const scheme = location.protocol === "https:" ? "wss://" : "ws://";
  ws = new WebSocket(scheme + location.host + WS_PATH);
  ws.onopen = function () {
    setStatus("waiting for SDK...");
    if (window.Spotify) { send({ type: "sdk_ready" }); }
  };
  ws.onmessage = function (e) { handle(JSON.parse(e.data)); };
  ws.onclose = function () {
    setStatus("disconnected, retrying...");
    setTimeout(open, 2000);
  };
}

window.onSpotifyWebPlaybackSDKReady = function () {
  setStatus("SDK loaded");
  send({ type: "sdk_ready" });
};

document.getElementById("activate").addEventListener("click", function () {
  Object.keys(players).forEach(function (id) { players[id].activateElement(); });
});

open();
</script>
<script src="https://sdk.scdn.co/spotify-player.js"></script>
</body>
</html>
`
