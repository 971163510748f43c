package server

import (
	"fmt"
	"net/http"
)

// clientScript is served to pages that include it with a <script src> tag.
// It derives the WebSocket URL from its own src, so the page and the reload
// server may live on different ports. %q is the WebSocket path.
const clientScript = `(function() {
  var src = document.currentScript && document.currentScript.src;
  var host = src ? new URL(src).host : location.hostname + ":35729";
  var url = "ws://" + host + %q;
  function refreshStyles() {
    var links = document.querySelectorAll('link[rel="stylesheet"]');
    for (var i = 0; i < links.length; i++) {
      var href = links[i].href.replace(/[?&]sasswatch=\d+/, "");
      links[i].href = href + (href.indexOf("?") < 0 ? "?" : "&") + "sasswatch=" + Date.now();
    }
  }
  function connect() {
    var ws = new WebSocket(url);
    ws.onopen = function() {
      ws.send(JSON.stringify({command: "hello", protocols: [%q]}));
    };
    ws.onmessage = function(e) {
      var msg = JSON.parse(e.data);
      if (msg.command !== "reload") {
        return;
      }
      if (msg.liveCSS) {
        refreshStyles();
      } else {
        location.reload();
      }
    };
    ws.onclose = function() {
      setTimeout(connect, 1000);
    };
  }
  connect();
})();
`

// ClientScript returns the browser script that connects to wsPath.
func ClientScript(wsPath string) []byte {
	return fmt.Appendf(nil, clientScript, wsPath, ProtocolOfficial7)
}

func handleClientScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	_, _ = w.Write(ClientScript(WSPath))
}
