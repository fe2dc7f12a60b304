package sources

const youtubeFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns:yt="http://www.youtube.com/xml/schemas/2015" xmlns:media="http://search.yahoo.com/mrss/" xmlns="http://www.w3.org/2005/Atom">
 <title>Breaking Points</title>
 <entry>
  <id>yt:video:abc123XYZ_0</id>
  <yt:videoId>abc123XYZ_0</yt:videoId>
  <title>Senate vote collapses &amp; what comes next</title>
  <link rel="alternate" href="https://www.youtube.com/watch?v=abc123XYZ_0"/>
  <published>2024-06-01T10:00:00+00:00</published>
  <updated>2024-06-01T11:00:00+00:00</updated>
  <media:group>
   <media:title>Senate vote collapses</media:title>
   <media:thumbnail url="https://i1.ytimg.com/vi/abc123XYZ_0/hqdefault.jpg" width="480" height="360"/>
  </media:group>
 </entry>
 <entry>
  <id>yt:video:def456XYZ_1</id>
  <yt:videoId>def456XYZ_1</yt:videoId>
  <title>Older segment</title>
  <link rel="alternate" href="https://www.youtube.com/watch?v=def456XYZ_1"/>
  <published>2024-05-31T10:00:00+00:00</published>
 </entry>
</feed>`

const proxyRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
 <title>Nick Fuentes on Rumble</title>
 <item>
  <title>America First Ep. 1200</title>
  <link>https://rumble.com/v4abcd-america-first.html</link>
  <guid>https://rumble.com/v4abcd-america-first.html</guid>
  <pubDate>Sat, 01 Jun 2024 09:00:00 GMT</pubDate>
  <description><![CDATA[<p><img src="https://sp.rmbl.ws/thumb.jpg"/></p> Tonight's show]]></description>
 </item>
</channel>
</rss>`

const challengePage = `<!DOCTYPE html>
<html><head><title>Just a moment...</title></head>
<body><div id="challenge-form">Checking your browser</div></body></html>`

const plainHTMLPage = `<!DOCTYPE html>
<html><head><title>Not Found</title></head><body><h1>404</h1></body></html>`

const channelPage = `<!DOCTYPE html>
<html><head><title>Stew Peters - Rumble</title></head>
<body>
 <ul>
  <li class="video-listing-entry">
   <a href="/c/StewPeters">Channel</a>
  </li>
  <li class="video-listing-entry">
   <a class="video-item--a" href="/v5xyz12-the-report.html"><img data-src="https://sp.rmbl.ws/s8/thumb1.jpg" src="data:image/gif;base64,AAAA"/></a>
   <h3 class="video-item--title">The Stew Peters Report</h3>
   <time datetime="2024-06-01T08:00:00+00:00">Jun 1</time>
  </li>
  <li class="video-listing-entry">
   <a href="/v5abc99-older.html">Older episode title</a>
  </li>
 </ul>
</body></html>`
