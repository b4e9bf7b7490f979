package livereload

// ClientScript connects the page to the hub and reloads it on "reload". It
// reconnects with backoff starting at 1s, growing by half each attempt up
// to 10s, and resetting once connected.
const ClientScript = `
<script>
(function() {
    var ws;
    var reconnectInterval = 1000;

    function connect() {
        var scheme = window.location.protocol === 'https:' ? 'wss://' : 'ws://';
        ws = new WebSocket(scheme + window.location.host + '` + Path + `');

        ws.onopen = function() {
            console.log('[LiveReload] Connected');
            reconnectInterval = 1000;
        };

        ws.onmessage = function(event) {
            if (event.data === '` + ReloadMessage + `') {
                console.log('[LiveReload] Reloading page...');
                window.location.reload();
            }
        };

        ws.onclose = function() {
            console.log('[LiveReload] Disconnected, reconnecting...');
            setTimeout(connect, reconnectInterval);
            reconnectInterval = Math.min(reconnectInterval * 1.5, 10000);
        };

        ws.onerror = function() {
            ws.close();
        };
    }

    connect();
})();
</script>
`
